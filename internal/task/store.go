package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stats summarizes the task table for operators.
type Stats struct {
	ByStatus map[TaskStatus]int              `json:"by_status"`
	ByType   map[TaskType]map[TaskStatus]int `json:"by_type"`
	Total    int                             `json:"total"`
}

// NewStats returns an empty Stats with its maps allocated.
func NewStats() Stats {
	return Stats{
		ByStatus: make(map[TaskStatus]int),
		ByType:   make(map[TaskType]map[TaskStatus]int),
	}
}

// Add counts n tasks of the given type and status.
func (s *Stats) Add(taskType TaskType, status TaskStatus, n int) {
	s.ByStatus[status] += n
	if s.ByType[taskType] == nil {
		s.ByType[taskType] = make(map[TaskStatus]int)
	}
	s.ByType[taskType][status] += n
	s.Total += n
}

// Store defines persistence for registration tasks.
//
// Every mutation that finishes an attempt is conditional on the task still
// being claimed by the caller; when the condition does not hold the method
// returns ErrClaimLost and changes nothing.
type Store interface {
	// CreateIfAbsent inserts task unless a task with the same
	// (user_id, task_type) exists. Reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, task *RegistrationTask) (bool, error)

	// ListDue returns up to limit tasks that are pending, or failed with
	// retry_count <= maxRetries, and whose next_retry_at is not after now.
	// Results are ordered by priority descending, then next_retry_at
	// ascending.
	ListDue(ctx context.Context, now time.Time, maxRetries int, limit int) ([]*RegistrationTask, error)

	// Claim moves a task from expected to processing and stamps
	// claimed_by/claimed_at. Returns ErrClaimLost if the task is no longer
	// in the expected status.
	Claim(ctx context.Context, id uuid.UUID, expected TaskStatus, claimedBy string, now time.Time) (*RegistrationTask, error)

	// Complete marks a claimed task completed and stores its result.
	Complete(ctx context.Context, id uuid.UUID, claimedBy string, result json.RawMessage, now time.Time) error

	// Reschedule returns a claimed task to pending with a new retry count,
	// due time and error details.
	Reschedule(
		ctx context.Context,
		id uuid.UUID,
		claimedBy string,
		retryCount int,
		nextRetryAt time.Time,
		details ErrorDetails,
		now time.Time,
	) error

	// Fail marks a claimed task failed with a new retry count and error
	// details.
	Fail(ctx context.Context, id uuid.UUID, claimedBy string, retryCount int, details ErrorDetails, now time.Time) error

	// ListByUser returns every task of a user ordered by priority descending.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*RegistrationTask, error)

	// ResetFailed returns every failed task of a user to pending with
	// retry_count 0, cleared error details and next_retry_at now.
	// Returns the number of tasks reset.
	ResetFailed(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)

	// ListStale returns up to limit processing tasks claimed before
	// claimedBefore.
	ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*RegistrationTask, error)

	// Stats counts tasks by type and status.
	Stats(ctx context.Context) (Stats, error)
}
