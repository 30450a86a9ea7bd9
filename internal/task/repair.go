package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/redact"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// FixResult reports what a backfill over existing users did.
type FixResult struct {
	UsersScanned int `json:"users_scanned"`
	UsersFixed   int `json:"users_fixed"`
	TasksCreated int `json:"tasks_created"`
	Errors       int `json:"errors"`
}

// RetriggerResult reports the three phases of a retrigger.
type RetriggerResult struct {
	ResetTasks int           `json:"reset_tasks"`
	Produced   ProduceResult `json:"produced"`
	Summary    Summary       `json:"summary"`
}

// Repairer holds operator escape hatches for stuck pipelines.
type Repairer struct {
	tasks     Store
	profiles  store.ProfileStore
	producer  *Producer
	processor *Processor
	logger    *slog.Logger
	now       func() time.Time
}

// NewRepairer creates a Repairer.
func NewRepairer(
	tasks Store,
	profiles store.ProfileStore,
	producer *Producer,
	processor *Processor,
	logger *slog.Logger,
) (*Repairer, error) {
	if tasks == nil || profiles == nil {
		return nil, fmt.Errorf("task and profile stores cannot be nil")
	}
	if producer == nil || processor == nil {
		return nil, fmt.Errorf("producer and processor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Repairer{
		tasks:     tasks,
		profiles:  profiles,
		producer:  producer,
		processor: processor,
		logger:    logger.With("component", "task_repairer"),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ResetFailed returns the failed tasks of a user to pending with a zero retry
// count and no error details. Returns store.ErrProfileNotFound for unknown
// users.
func (r *Repairer) ResetFailed(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if _, err := r.profiles.GetByID(ctx, userID); err != nil {
		return 0, fmt.Errorf("failed to load profile: %w", err)
	}
	n, err := r.tasks.ResetFailed(ctx, userID, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset tasks: %w", err)
	}
	r.logger.InfoContext(ctx, "reset failed registration tasks", "user_id", userID, "reset_tasks", n)
	return n, nil
}

// FixExistingPatients produces tasks for every paid patient. Users that
// already have all their tasks are counted as scanned but not fixed. One
// user's error does not stop the backfill.
func (r *Repairer) FixExistingPatients(ctx context.Context) (FixResult, error) {
	var res FixResult
	patients, err := r.profiles.ListPaidPatients(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list paid patients: %w", err)
	}

	for _, p := range patients {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.UsersScanned++
		produced, err := r.producer.Produce(ctx, ProduceRequest{UserID: p.ID, Event: EventBackfill})
		if err != nil {
			res.Errors++
			r.logger.ErrorContext(ctx, "failed to backfill tasks",
				"user_id", p.ID,
				"error", redact.Error(err))
			continue
		}
		if produced.TasksCreated > 0 {
			res.UsersFixed++
			res.TasksCreated += produced.TasksCreated
		}
	}

	r.logger.InfoContext(ctx, "backfilled registration tasks",
		"users_scanned", res.UsersScanned,
		"users_fixed", res.UsersFixed,
		"tasks_created", res.TasksCreated,
		"errors", res.Errors)
	return res, nil
}

// FixExistingProviders marks doctors and nutritionists that predate the
// pipeline as fully registered. Providers have no onboarding tasks.
func (r *Repairer) FixExistingProviders(ctx context.Context) (FixResult, error) {
	var res FixResult
	providers, err := r.profiles.ListProvidersBehind(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list providers: %w", err)
	}

	for _, p := range providers {
		res.UsersScanned++
		changed, err := r.profiles.AdvanceRegistrationStatus(ctx, p.ID, domain.RegistrationFullyRegistered)
		if err != nil {
			res.Errors++
			r.logger.ErrorContext(ctx, "failed to fix provider registration",
				"user_id", p.ID,
				"error", redact.Error(err))
			continue
		}
		if changed {
			res.UsersFixed++
		}
	}

	r.logger.InfoContext(ctx, "fixed provider registrations",
		"users_scanned", res.UsersScanned,
		"users_fixed", res.UsersFixed,
		"errors", res.Errors)
	return res, nil
}

// Retrigger resets a user's failed tasks, produces any missing ones and
// processes that user's due tasks.
func (r *Repairer) Retrigger(ctx context.Context, userID uuid.UUID) (RetriggerResult, error) {
	var res RetriggerResult

	reset, err := r.ResetFailed(ctx, userID)
	if err != nil {
		return res, err
	}
	res.ResetTasks = reset

	produced, err := r.producer.Produce(ctx, ProduceRequest{UserID: userID, Event: EventRetrigger})
	if err != nil && !errors.Is(err, ErrNotPatient) && !errors.Is(err, ErrPaymentRequired) {
		return res, err
	}
	res.Produced = produced

	summary, err := r.processor.ProcessUser(ctx, userID)
	res.Summary = summary
	if err != nil {
		return res, err
	}
	return res, nil
}

// ResetAndProcess resets a user's failed tasks and processes that user's due
// tasks. Other users' queued work is left to the next batch.
func (r *Repairer) ResetAndProcess(ctx context.Context, userID uuid.UUID) (int, Summary, error) {
	reset, err := r.ResetFailed(ctx, userID)
	if err != nil {
		return 0, Summary{}, err
	}
	summary, err := r.processor.ProcessUser(ctx, userID)
	return reset, summary, err
}
