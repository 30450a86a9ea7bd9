package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/redact"
)

// unconfiguredSender fails every send with ErrProviderNotConfigured.
type unconfiguredSender struct {
	channel Channel
}

func (s unconfiguredSender) Send(ctx context.Context, msg Message) (string, error) {
	return "", fmt.Errorf("%s: %w", s.channel, ErrProviderNotConfigured)
}

// Dispatcher routes messages to the sender of their channel.
type Dispatcher struct {
	senders map[Channel]Sender
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. Channels missing from senders are
// treated as unconfigured.
func NewDispatcher(senders map[Channel]Sender, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[Channel]Sender, len(Channels())),
		logger:  logger.With("component", "notify_dispatcher"),
	}
	for _, c := range Channels() {
		if s, ok := senders[c]; ok && s != nil {
			d.senders[c] = s
		} else {
			d.senders[c] = unconfiguredSender{channel: c}
		}
	}
	return d
}

// Configured reports whether a real provider backs the channel.
func (d *Dispatcher) Configured(c Channel) bool {
	_, unconfigured := d.senders[c].(unconfiguredSender)
	return !unconfigured
}

// Send validates msg and hands it to the sender of its channel.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	sender, ok := d.senders[msg.Channel]
	if !ok {
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidMessage, msg.Channel)
	}

	id, err := sender.Send(ctx, msg)
	if err != nil {
		d.logger.WarnContext(ctx, "notification delivery failed",
			"channel", msg.Channel,
			"error", redact.Error(err))
		return "", err
	}

	d.logger.InfoContext(ctx, "notification delivered",
		"channel", msg.Channel,
		"provider_message_id", id)
	return id, nil
}
