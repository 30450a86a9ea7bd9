package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the subset of the SES v2 client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers email through AWS SES.
type SESSender struct {
	client    SESAPI
	fromEmail string
}

// NewSESSender creates an email sender. fromEmail must be a verified SES
// identity.
func NewSESSender(client SESAPI, fromEmail string) (*SESSender, error) {
	if client == nil {
		return nil, fmt.Errorf("ses client cannot be nil")
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("email: from address: %w", ErrProviderNotConfigured)
	}
	return &SESSender{client: client, fromEmail: fromEmail}, nil
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	subject := msg.Title
	if subject == "" {
		subject = "A message from your care team"
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	})
	if err != nil {
		var rejected *types.MessageRejected
		var notFound *types.NotFoundException
		if errors.As(err, &rejected) || errors.As(err, &notFound) {
			return "", fmt.Errorf("ses: %w: %v", ErrProviderRejected, err)
		}
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
