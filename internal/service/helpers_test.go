package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/notify"
	"github.com/careloop/careloop-api/internal/settings"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticFlags is a fixed FeatureFlags.
type staticFlags settings.Features

func (f staticFlags) Current() settings.Features { return settings.Features(f) }

func defaultFlags() staticFlags {
	return staticFlags{ChatEnabled: true, AIAssistantEnabled: true}
}

// fakeNotifier records messages and fails per channel.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	errs map[notify.Channel]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{errs: make(map[notify.Channel]error)}
}

func (n *fakeNotifier) Send(ctx context.Context, msg notify.Message) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	if err := n.errs[msg.Channel]; err != nil {
		return "", err
	}
	return string(msg.Channel) + "-" + uuid.NewString()[:8], nil
}

func (n *fakeNotifier) Channels() []notify.Channel {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Channel, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Channel)
	}
	return out
}

func newProfile(role domain.Role, name string) *domain.Profile {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Profile{
		ID:                 uuid.New(),
		Role:               role,
		FullName:           name,
		RegistrationStatus: domain.RegistrationPaymentPending,
		PaymentStatus:      domain.PaymentPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func newPatient() *domain.Profile {
	p := newProfile(domain.RolePatient, "Pat Example")
	p.Email = "pat@example.com"
	p.Phone = "+15551234567"
	return p
}
