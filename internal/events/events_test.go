package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainEvent(t *testing.T) {
	userID := uuid.New()
	payload := PaymentCompleted{
		PaymentReference: "pay_123",
		DoctorID:         uuid.New(),
	}

	event, err := NewDomainEvent(TypePaymentCompleted, userID, payload)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypePaymentCompleted, event.Type)
	assert.Equal(t, userID, event.UserID)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded PaymentCompleted
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
	assert.Equal(t, uuid.Nil, decoded.NutritionistID)
}

func TestNewDomainEvent_UnencodablePayload(t *testing.T) {
	_, err := NewDomainEvent(TypePaymentCompleted, uuid.New(), make(chan int))
	assert.Error(t, err)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *DomainEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *DomainEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestEventHandlerFunc(t *testing.T) {
	var got *DomainEvent
	h := EventHandlerFunc(func(ctx context.Context, e *DomainEvent) error {
		got = e
		return errors.New("nope")
	})

	event, err := NewDomainEvent(TypePaymentCompleted, uuid.New(), PaymentCompleted{})
	require.NoError(t, err)

	assert.EqualError(t, h.HandleEvent(context.Background(), event), "nope")
	assert.Same(t, event, got)
}
