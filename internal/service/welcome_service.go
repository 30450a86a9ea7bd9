package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/notify"
	"github.com/careloop/careloop-api/internal/redact"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// Notifier sends a single notification and returns the provider message id.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (string, error)
}

// Delivery is the outcome of one welcome notification channel.
type Delivery struct {
	Channel   notify.Channel `json:"channel"`
	MessageID string         `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// WelcomeResult lists the deliveries attempted for one patient.
type WelcomeResult struct {
	Deliveries []Delivery `json:"deliveries"`
}

// Delivered counts successful deliveries.
func (r WelcomeResult) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Error == "" {
			n++
		}
	}
	return n
}

const welcomeTitle = "Welcome to CareLoop"

// WelcomeService greets a newly registered patient on every channel they can
// be reached on.
type WelcomeService struct {
	profiles store.ProfileStore
	notifier Notifier
	features FeatureFlags
	logger   *slog.Logger
}

// NewWelcomeService creates a WelcomeService.
func NewWelcomeService(
	profiles store.ProfileStore,
	notifier Notifier,
	features FeatureFlags,
	logger *slog.Logger,
) (*WelcomeService, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile store cannot be nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if features == nil {
		return nil, fmt.Errorf("feature flags cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &WelcomeService{
		profiles: profiles,
		notifier: notifier,
		features: features,
		logger:   logger.With("component", "welcome_service"),
	}, nil
}

// messagesFor builds one welcome message per reachable channel.
func (s *WelcomeService) messagesFor(p *domain.Profile) []notify.Message {
	body := fmt.Sprintf(
		"Hi %s, your registration is complete. Your care team is ready and you can "+
			"reach them any time from the care team chat.", p.DisplayName())

	var msgs []notify.Message
	if email := strings.TrimSpace(p.Email); email != "" {
		msgs = append(msgs, notify.Message{Channel: notify.ChannelEmail, To: email, Title: welcomeTitle, Body: body})
	}
	if phone := strings.TrimSpace(p.Phone); phone != "" {
		msgs = append(msgs, notify.Message{Channel: notify.ChannelSMS, To: phone, Body: body})
		if p.WhatsAppOptIn && s.features.Current().WhatsAppEnabled {
			msgs = append(msgs, notify.Message{Channel: notify.ChannelWhatsApp, To: phone, Title: welcomeTitle, Body: body})
		}
	}
	return msgs
}

// Send delivers the welcome notification. At least one successful channel
// counts as success. When every channel fails the returned error wraps the
// most retryable failure: transient before configuration before permanent.
func (s *WelcomeService) Send(ctx context.Context, patientID uuid.UUID) (WelcomeResult, error) {
	var res WelcomeResult

	patient, err := s.profiles.GetByID(ctx, patientID)
	if err != nil {
		return res, fmt.Errorf("failed to load patient: %w", err)
	}

	msgs := s.messagesFor(patient)
	if len(msgs) == 0 {
		return res, fmt.Errorf("patient %s: %w", patientID, ErrNoContactChannel)
	}

	var errs []error
	for _, msg := range msgs {
		id, err := s.notifier.Send(ctx, msg)
		d := Delivery{Channel: msg.Channel, MessageID: id}
		if err != nil {
			d.Error = redact.Error(err)
			errs = append(errs, err)
		}
		res.Deliveries = append(res.Deliveries, d)
	}

	if res.Delivered() > 0 {
		s.logger.InfoContext(ctx, "welcome notification sent",
			"patient_id", patientID,
			"delivered", res.Delivered(),
			"attempted", len(msgs))
		return res, nil
	}
	return res, fmt.Errorf("welcome notification failed on all %d channels: %w", len(msgs), dominantError(errs))
}

// dominantError picks the failure that gives a retry the best chance.
func dominantError(errs []error) error {
	rank := func(err error) int {
		switch {
		case errors.Is(err, domain.ErrPermanent), errors.Is(err, domain.ErrValidation):
			return 2
		case errors.Is(err, domain.ErrConfiguration):
			return 1
		default:
			return 0
		}
	}
	best := errs[0]
	for _, err := range errs[1:] {
		if rank(err) < rank(best) {
			best = err
		}
	}
	if rank(best) == 2 && !errors.Is(best, domain.ErrPermanent) {
		return fmt.Errorf("%w: %w", domain.ErrPermanent, best)
	}
	return best
}
