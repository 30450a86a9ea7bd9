package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// MockProgressStore is an in-memory store.ProgressStore for testing.
type MockProgressStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.RegistrationProgress

	// Err, when set, is returned by every method.
	Err error

	// MarkStepErr, when set, is returned by MarkStep only.
	MarkStepErr error
}

// NewMockProgressStore creates an empty progress store.
func NewMockProgressStore() *MockProgressStore {
	return &MockProgressStore{rows: make(map[uuid.UUID]*domain.RegistrationProgress)}
}

func (m *MockProgressStore) row(userID uuid.UUID) *domain.RegistrationProgress {
	r, ok := m.rows[userID]
	if !ok {
		r = &domain.RegistrationProgress{UserID: userID, PaymentStatus: domain.PaymentPending}
		m.rows[userID] = r
	}
	r.UpdatedAt = time.Now().UTC()
	return r
}

// Get implements store.ProgressStore.
func (m *MockProgressStore) Get(ctx context.Context, userID uuid.UUID) (*domain.RegistrationProgress, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[userID]
	if !ok {
		return nil, store.ErrProgressNotFound
	}
	cp := *r
	return &cp, nil
}

// SetPaymentStatus implements store.ProgressStore.
func (m *MockProgressStore) SetPaymentStatus(ctx context.Context, userID uuid.UUID, status domain.PaymentStatus) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row(userID).PaymentStatus = status
	return nil
}

// MarkStep implements store.ProgressStore.
func (m *MockProgressStore) MarkStep(
	ctx context.Context,
	userID uuid.UUID,
	step domain.ProgressStep,
) (*domain.RegistrationProgress, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.MarkStepErr != nil {
		return nil, m.MarkStepErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.row(userID)
	r.Set(step)
	cp := *r
	return &cp, nil
}

// MarkCompleted implements store.ProgressStore.
func (m *MockProgressStore) MarkCompleted(ctx context.Context, userID uuid.UUID) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row(userID).RegistrationCompleted = true
	return nil
}
