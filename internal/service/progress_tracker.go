package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/google/uuid"
)

// ProgressTracker turns completed tasks into registration progress and
// registration status changes.
type ProgressTracker struct {
	progress store.ProgressStore
	profiles store.ProfileStore
	logger   *slog.Logger
}

var _ task.ProgressTracker = (*ProgressTracker)(nil)

// NewProgressTracker creates a ProgressTracker.
func NewProgressTracker(progress store.ProgressStore, profiles store.ProfileStore, logger *slog.Logger) (*ProgressTracker, error) {
	if progress == nil || profiles == nil {
		return nil, fmt.Errorf("progress and profile stores cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &ProgressTracker{
		progress: progress,
		profiles: profiles,
		logger:   logger.With("component", "progress_tracker"),
	}, nil
}

// StepCompleted sets the progress flag of the task type. Care-team assignment
// advances the registration status to care_team_assigned; once every step is
// done the registration is marked completed and the status becomes
// fully_registered. Status changes only ever move forward.
func (t *ProgressTracker) StepCompleted(ctx context.Context, userID uuid.UUID, taskType task.TaskType) error {
	step, ok := taskType.Step()
	if !ok {
		return fmt.Errorf("%w: task type %q has no progress step", domain.ErrPermanent, taskType)
	}

	row, err := t.progress.MarkStep(ctx, userID, step)
	if err != nil {
		return fmt.Errorf("failed to mark %s: %w", step, err)
	}

	if taskType == task.TaskTypeAssignCareTeam {
		if _, err := t.profiles.AdvanceRegistrationStatus(ctx, userID, domain.RegistrationCareTeamAssigned); err != nil {
			return fmt.Errorf("failed to advance registration status: %w", err)
		}
	}

	if !row.Complete() {
		return nil
	}
	if !row.RegistrationCompleted {
		if err := t.progress.MarkCompleted(ctx, userID); err != nil {
			return fmt.Errorf("failed to mark registration completed: %w", err)
		}
	}
	changed, err := t.profiles.AdvanceRegistrationStatus(ctx, userID, domain.RegistrationFullyRegistered)
	if err != nil {
		return fmt.Errorf("failed to advance registration status: %w", err)
	}
	if changed {
		t.logger.InfoContext(ctx, "registration completed", "user_id", userID)
	}
	return nil
}

// Progress returns the registration progress of a user.
func (t *ProgressTracker) Progress(ctx context.Context, userID uuid.UUID) (*domain.RegistrationProgress, error) {
	return t.progress.Get(ctx, userID)
}
