package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// TypePaymentCompleted is emitted once a patient's onboarding payment has
	// been recorded.
	TypePaymentCompleted = "payment.completed"
)

// DomainEvent is a fact about a user that other components may react to.
type DomainEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type names what happened
	Type string `json:"type"`

	// UserID is the user the event is about
	UserID uuid.UUID `json:"user_id"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *DomainEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewDomainEvent creates a new DomainEvent with the specified type and payload.
func NewDomainEvent(eventType string, userID uuid.UUID, payload interface{}) (*DomainEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &DomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// PaymentCompleted is the payload of a payment.completed event. Provider ids
// are uuid.Nil when the patient did not choose their care team.
type PaymentCompleted struct {
	PaymentReference string    `json:"payment_reference"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	NutritionistID   uuid.UUID `json:"nutritionist_id"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Handlers ignore event types they do not understand.
	HandleEvent(ctx context.Context, event *DomainEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *DomainEvent) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *DomainEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *DomainEvent) error
}
