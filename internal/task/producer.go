package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// Event names what caused tasks to be produced.
type Event string

const (
	EventPaymentCompleted Event = "payment_completed"
	EventBackfill         Event = "backfill"
	EventRetrigger        Event = "retrigger"
	EventManual           Event = "manual"
)

// AssignCareTeamPayload is the payload of an assign_care_team task. Nil ids
// mean the active default care team is used.
type AssignCareTeamPayload struct {
	DoctorID       uuid.UUID `json:"doctor_id"`
	NutritionistID uuid.UUID `json:"nutritionist_id"`
}

// Explicit reports whether both providers were chosen.
func (p AssignCareTeamPayload) Explicit() bool {
	return p.DoctorID != uuid.Nil && p.NutritionistID != uuid.Nil
}

// ProduceRequest asks the Producer to create the onboarding tasks of a user.
type ProduceRequest struct {
	UserID         uuid.UUID
	Event          Event
	DoctorID       uuid.UUID
	NutritionistID uuid.UUID
}

// ProduceResult reports how many tasks were inserted for a user.
type ProduceResult struct {
	UserID        uuid.UUID `json:"user_id"`
	TasksCreated  int       `json:"tasks_created"`
	TasksExisting int       `json:"tasks_existing"`
}

// Producer inserts one task per required onboarding step.
type Producer struct {
	tasks    Store
	profiles store.ProfileStore
	progress store.ProgressStore
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewProducer creates a Producer.
func NewProducer(
	tasks Store,
	profiles store.ProfileStore,
	progress store.ProgressStore,
	logger *slog.Logger,
) (*Producer, error) {
	if tasks == nil {
		return nil, fmt.Errorf("task store cannot be nil")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile store cannot be nil")
	}
	if progress == nil {
		return nil, fmt.Errorf("progress store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Producer{
		tasks:    tasks,
		profiles: profiles,
		progress: progress,
		observer: NopObserver{},
		logger:   logger.With("component", "task_producer"),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetObserver replaces the metrics observer.
func (p *Producer) SetObserver(o Observer) {
	if o != nil {
		p.observer = o
	}
}

// Produce creates the onboarding tasks of a patient. Tasks that already exist
// for the same (user, type) are left untouched, so calling Produce repeatedly
// is safe. Returns store.ErrProfileNotFound when the user has no profile,
// ErrNotPatient for non-patient users and ErrPaymentRequired when the patient
// has not paid and the request is not itself a payment event.
func (p *Producer) Produce(ctx context.Context, req ProduceRequest) (ProduceResult, error) {
	res := ProduceResult{UserID: req.UserID}
	if req.UserID == uuid.Nil {
		return res, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	log := p.logger.With("user_id", req.UserID, "event", req.Event)

	profile, err := p.profiles.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			log.WarnContext(ctx, "skipping task production for missing profile")
		}
		return res, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.Role != domain.RolePatient {
		return res, fmt.Errorf("%w: user has role %s", ErrNotPatient, profile.Role)
	}
	paid := req.Event == EventPaymentCompleted || profile.PaymentStatus == domain.PaymentCompleted
	if !paid {
		log.WarnContext(ctx, "refusing task production for unpaid patient", "payment_status", profile.PaymentStatus)
		return res, fmt.Errorf("%w: payment status is %q", ErrPaymentRequired, profile.PaymentStatus)
	}

	now := p.now()
	for _, step := range RequiredSteps() {
		payload, err := p.payloadFor(step, req)
		if err != nil {
			return res, err
		}
		t, err := NewRegistrationTask(req.UserID, step, payload, now)
		if err != nil {
			return res, err
		}
		created, err := p.tasks.CreateIfAbsent(ctx, t)
		if err != nil {
			return res, fmt.Errorf("failed to create %s task: %w", step, err)
		}
		if created {
			res.TasksCreated++
		} else {
			res.TasksExisting++
		}
	}

	if err := p.progress.SetPaymentStatus(ctx, req.UserID, domain.PaymentCompleted); err != nil {
		return res, fmt.Errorf("failed to record payment status: %w", err)
	}
	if _, err := p.profiles.AdvanceRegistrationStatus(ctx, req.UserID, domain.RegistrationPaymentComplete); err != nil {
		return res, fmt.Errorf("failed to advance registration status: %w", err)
	}

	p.observer.TasksProduced(res.TasksCreated, res.TasksExisting)
	log.InfoContext(ctx, "registration tasks produced",
		"tasks_created", res.TasksCreated,
		"tasks_existing", res.TasksExisting)
	return res, nil
}

func (p *Producer) payloadFor(step TaskType, req ProduceRequest) (json.RawMessage, error) {
	if step != TaskTypeAssignCareTeam {
		return nil, nil
	}
	payload := AssignCareTeamPayload{DoctorID: req.DoctorID, NutritionistID: req.NutritionistID}
	if !payload.Explicit() {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode care team payload: %w", err)
	}
	return b, nil
}
