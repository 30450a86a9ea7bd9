package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/events"
	"github.com/careloop/careloop-api/internal/redact"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/google/uuid"
)

// PaymentCompletion records that a patient paid for onboarding.
type PaymentCompletion struct {
	PatientID        uuid.UUID
	PaymentReference string
	DoctorID         uuid.UUID
	NutritionistID   uuid.UUID
}

// PaymentService records completed payments and announces them.
type PaymentService struct {
	profiles store.ProfileStore
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(profiles store.ProfileStore, emitter events.EventEmitter, logger *slog.Logger) (*PaymentService, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile store cannot be nil")
	}
	if emitter == nil {
		return nil, fmt.Errorf("event emitter cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &PaymentService{
		profiles: profiles,
		emitter:  emitter,
		logger:   logger.With("component", "payment_service"),
	}, nil
}

// Complete marks the patient's payment as completed and emits
// payment.completed. Handler errors are returned so the caller can report
// them; the payment itself stays recorded.
func (s *PaymentService) Complete(ctx context.Context, p PaymentCompletion) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(p.PaymentReference) == "" {
		return fmt.Errorf("%w: payment reference is required", domain.ErrValidation)
	}
	if (p.DoctorID == uuid.Nil) != (p.NutritionistID == uuid.Nil) {
		return fmt.Errorf("%w: doctor and nutritionist must be chosen together", domain.ErrValidation)
	}

	patient, err := s.profiles.GetByID(ctx, p.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}
	if patient.Role != domain.RolePatient {
		return fmt.Errorf("%w: payments are only recorded for patients", domain.ErrValidation)
	}
	if err := s.profiles.SetPaymentStatus(ctx, p.PatientID, domain.PaymentCompleted); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}

	event, err := events.NewDomainEvent(events.TypePaymentCompleted, p.PatientID, events.PaymentCompleted{
		PaymentReference: p.PaymentReference,
		DoctorID:         p.DoctorID,
		NutritionistID:   p.NutritionistID,
	})
	if err != nil {
		return fmt.Errorf("failed to build payment event: %w", err)
	}

	s.logger.InfoContext(ctx, "payment recorded", "patient_id", p.PatientID)
	return s.emitter.EmitEvent(ctx, event)
}

// RegistrationEventHandler produces onboarding tasks when a payment
// completes.
type RegistrationEventHandler struct {
	producer *task.Producer
	logger   *slog.Logger
}

// NewRegistrationEventHandler creates a RegistrationEventHandler.
func NewRegistrationEventHandler(producer *task.Producer, logger *slog.Logger) *RegistrationEventHandler {
	return &RegistrationEventHandler{
		producer: producer,
		logger:   logger.With("component", "registration_event_handler"),
	}
}

// HandleEvent implements events.EventHandler.
func (h *RegistrationEventHandler) HandleEvent(ctx context.Context, event *events.DomainEvent) error {
	if event.Type != events.TypePaymentCompleted {
		return nil
	}
	var payload events.PaymentCompleted
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("%w: malformed payment event: %v", domain.ErrValidation, err)
	}

	_, err := h.producer.Produce(ctx, task.ProduceRequest{
		UserID:         event.UserID,
		Event:          task.EventPaymentCompleted,
		DoctorID:       payload.DoctorID,
		NutritionistID: payload.NutritionistID,
	})
	if err != nil {
		if !errors.Is(err, store.ErrProfileNotFound) {
			h.logger.ErrorContext(ctx, "failed to produce registration tasks",
				"event_id", event.ID,
				"user_id", event.UserID,
				"error", redact.Error(err))
		}
		return err
	}
	return nil
}
