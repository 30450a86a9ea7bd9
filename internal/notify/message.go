package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Channel names a delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels returns every supported channel.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp}
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidMessage, s)
	}
}

var recipients = validator.New()

// Message is a single notification to one recipient.
type Message struct {
	Channel Channel `json:"channel"`
	To      string  `json:"to"`
	Title   string  `json:"title,omitempty"`
	Body    string  `json:"body"`
}

// Validate checks the recipient format for the channel and that a body is
// present. Phone numbers must be E.164.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: message body is required", ErrInvalidMessage)
	}
	switch m.Channel {
	case ChannelEmail:
		if recipients.Var(m.To, "required,email") != nil {
			return fmt.Errorf("%w: invalid email recipient", ErrInvalidMessage)
		}
	case ChannelSMS, ChannelWhatsApp:
		if recipients.Var(m.To, "required,e164") != nil {
			return fmt.Errorf("%w: recipient must be an E.164 phone number", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidMessage, m.Channel)
	}
	return nil
}

// Sender delivers messages over one channel and returns the provider's
// message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Notification errors
var (
	// ErrProviderNotConfigured is returned when a channel has no provider
	// credentials.
	ErrProviderNotConfigured = fmt.Errorf("%w: notification provider not configured", domain.ErrConfiguration)

	// ErrInvalidMessage is returned for messages that can never be delivered.
	ErrInvalidMessage = fmt.Errorf("%w: invalid notification", domain.ErrValidation)

	// ErrProviderRejected is returned when the provider refuses a message
	// permanently (bad recipient, opted out).
	ErrProviderRejected = fmt.Errorf("%w: notification rejected by provider", domain.ErrPermanent)
)
