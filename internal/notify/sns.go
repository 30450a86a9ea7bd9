package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used by SNSSender.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender delivers SMS through AWS SNS.
type SNSSender struct {
	client   SNSAPI
	senderID string
}

// NewSNSSender creates an SMS sender. senderID is optional.
func NewSNSSender(client SNSAPI, senderID string) (*SNSSender, error) {
	if client == nil {
		return nil, fmt.Errorf("sns client cannot be nil")
	}
	return &SNSSender{client: client, senderID: senderID}, nil
}

// Send implements Sender.
func (s *SNSSender) Send(ctx context.Context, msg Message) (string, error) {
	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(msg.To),
		Message:           aws.String(msg.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		var invalid *snstypes.InvalidParameterException
		var optedOut *snstypes.InvalidParameterValueException
		if errors.As(err, &invalid) || errors.As(err, &optedOut) {
			return "", fmt.Errorf("sns: %w: %v", ErrProviderRejected, err)
		}
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
