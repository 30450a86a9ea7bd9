package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// MockProfileStore is an in-memory store.ProfileStore for testing.
type MockProfileStore struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*domain.Profile

	// Err, when set, is returned by every method.
	Err error

	// GetByIDFn overrides GetByID when set.
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
}

// NewMockProfileStore creates a store seeded with the given profiles.
func NewMockProfileStore(profiles ...*domain.Profile) *MockProfileStore {
	m := &MockProfileStore{profiles: make(map[uuid.UUID]*domain.Profile)}
	for _, p := range profiles {
		m.Put(p)
	}
	return m
}

// Put inserts or replaces a profile.
func (m *MockProfileStore) Put(p *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.ID] = &cp
}

// GetByID implements store.ProfileStore.
func (m *MockProfileStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPaidPatients implements store.ProfileStore.
func (m *MockProfileStore) ListPaidPatients(ctx context.Context) ([]*domain.Profile, error) {
	return m.list(func(p *domain.Profile) bool {
		return p.Role == domain.RolePatient && p.PaymentStatus == domain.PaymentCompleted
	})
}

// ListProvidersBehind implements store.ProfileStore.
func (m *MockProfileStore) ListProvidersBehind(ctx context.Context) ([]*domain.Profile, error) {
	return m.list(func(p *domain.Profile) bool {
		return p.Role.IsProvider() && p.RegistrationStatus != domain.RegistrationFullyRegistered
	})
}

func (m *MockProfileStore) list(keep func(*domain.Profile) bool) ([]*domain.Profile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Profile
	for _, p := range m.profiles {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AdvanceRegistrationStatus implements store.ProfileStore.
func (m *MockProfileStore) AdvanceRegistrationStatus(
	ctx context.Context,
	id uuid.UUID,
	next domain.RegistrationStatus,
) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return false, nil
	}
	if !p.RegistrationStatus.CanAdvanceTo(next) {
		return false, nil
	}
	p.RegistrationStatus = next
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SetPaymentStatus implements store.ProfileStore.
func (m *MockProfileStore) SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return store.ErrProfileNotFound
	}
	p.PaymentStatus = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}
