package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store for testing. Its conditional updates follow
// the same rules as the Postgres implementation.
type MockStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*RegistrationTask

	// ListDueErr, when set, is returned by ListDue.
	ListDueErr error

	// ClaimFn, when set, replaces Claim.
	ClaimFn func(ctx context.Context, id uuid.UUID, expected TaskStatus, claimedBy string, now time.Time) (*RegistrationTask, error)

	// CompleteErr, when set, is returned by Complete.
	CompleteErr error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{tasks: make(map[uuid.UUID]*RegistrationTask)}
}

// Put inserts or replaces a task without any checks.
func (s *MockStore) Put(t *RegistrationTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
}

// Get returns a copy of a task.
func (s *MockStore) Get(id uuid.UUID) (*RegistrationTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// All returns copies of every task.
func (s *MockStore) All() []*RegistrationTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RegistrationTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sortByPriority(out)
	return out
}

// CreateIfAbsent implements Store.
func (s *MockStore) CreateIfAbsent(ctx context.Context, task *RegistrationTask) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.UserID == task.UserID && t.Type == task.Type {
			return false, nil
		}
	}
	s.tasks[task.ID] = task.Clone()
	return true, nil
}

// ListDue implements Store.
func (s *MockStore) ListDue(ctx context.Context, now time.Time, maxRetries int, limit int) ([]*RegistrationTask, error) {
	if s.ListDueErr != nil {
		return nil, s.ListDueErr
	}
	policy := RetryPolicy{MaxRetries: maxRetries}

	s.mu.RLock()
	var due []*RegistrationTask
	for _, t := range s.tasks {
		if t.Due(now, policy) {
			due = append(due, t.Clone())
		}
	}
	s.mu.RUnlock()

	sortByPriority(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Claim implements Store.
func (s *MockStore) Claim(
	ctx context.Context,
	id uuid.UUID,
	expected TaskStatus,
	claimedBy string,
	now time.Time,
) (*RegistrationTask, error) {
	if s.ClaimFn != nil {
		return s.ClaimFn(ctx, id, expected, claimedBy, now)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != expected || !CanTransition(expected, TaskStatusProcessing) {
		return nil, ErrClaimLost
	}
	t.Status = TaskStatusProcessing
	t.ClaimedBy = claimedBy
	at := now
	t.ClaimedAt = &at
	t.UpdatedAt = now
	return t.Clone(), nil
}

// claimed returns the task if it is processing under claimedBy. Callers hold
// the write lock.
func (s *MockStore) claimed(id uuid.UUID, claimedBy string) (*RegistrationTask, error) {
	t, ok := s.tasks[id]
	if !ok || t.Status != TaskStatusProcessing || t.ClaimedBy != claimedBy {
		return nil, ErrClaimLost
	}
	return t, nil
}

// Complete implements Store.
func (s *MockStore) Complete(ctx context.Context, id uuid.UUID, claimedBy string, result json.RawMessage, now time.Time) error {
	if s.CompleteErr != nil {
		return s.CompleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.claimed(id, claimedBy)
	if err != nil {
		return err
	}
	t.Status = TaskStatusCompleted
	t.ResultPayload = append(json.RawMessage(nil), result...)
	t.ErrorDetails = nil
	t.ClaimedBy = ""
	t.ClaimedAt = nil
	t.UpdatedAt = now
	return nil
}

// Reschedule implements Store.
func (s *MockStore) Reschedule(
	ctx context.Context,
	id uuid.UUID,
	claimedBy string,
	retryCount int,
	nextRetryAt time.Time,
	details ErrorDetails,
	now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.claimed(id, claimedBy)
	if err != nil {
		return err
	}
	t.Status = TaskStatusPending
	t.RetryCount = retryCount
	t.NextRetryAt = nextRetryAt
	t.ErrorDetails = &details
	t.ClaimedBy = ""
	t.ClaimedAt = nil
	t.UpdatedAt = now
	return nil
}

// Fail implements Store.
func (s *MockStore) Fail(
	ctx context.Context,
	id uuid.UUID,
	claimedBy string,
	retryCount int,
	details ErrorDetails,
	now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.claimed(id, claimedBy)
	if err != nil {
		return err
	}
	t.Status = TaskStatusFailed
	t.RetryCount = retryCount
	t.ErrorDetails = &details
	t.ClaimedBy = ""
	t.ClaimedAt = nil
	t.UpdatedAt = now
	return nil
}

// ListByUser implements Store.
func (s *MockStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*RegistrationTask, error) {
	s.mu.RLock()
	var out []*RegistrationTask
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()
	sortByPriority(out)
	return out, nil
}

// ResetFailed implements Store.
func (s *MockStore) ResetFailed(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.UserID != userID || t.Status != TaskStatusFailed {
			continue
		}
		t.Status = TaskStatusPending
		t.RetryCount = 0
		t.ErrorDetails = nil
		t.NextRetryAt = now
		t.UpdatedAt = now
		n++
	}
	return n, nil
}

// ListStale implements Store.
func (s *MockStore) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*RegistrationTask, error) {
	s.mu.RLock()
	var out []*RegistrationTask
	for _, t := range s.tasks {
		if t.Status == TaskStatusProcessing && t.ClaimedAt != nil && t.ClaimedAt.Before(claimedBefore) {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()
	sortByPriority(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats implements Store.
func (s *MockStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := NewStats()
	for _, t := range s.tasks {
		stats.Add(t.Type, t.Status, 1)
	}
	return stats, nil
}

var _ Store = (*MockStore)(nil)
