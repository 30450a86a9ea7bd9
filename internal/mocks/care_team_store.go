package mocks

import (
	"context"
	"sync"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// MockCareTeamStore is an in-memory store.CareTeamStore for testing.
type MockCareTeamStore struct {
	mu       sync.RWMutex
	defaults []*domain.DefaultCareTeam
	teams    map[uuid.UUID]*domain.CareTeam

	// Err, when set, is returned by every method.
	Err error

	// AssignCalls counts calls to Assign.
	AssignCalls int
}

// NewMockCareTeamStore creates an empty care team store.
func NewMockCareTeamStore() *MockCareTeamStore {
	return &MockCareTeamStore{teams: make(map[uuid.UUID]*domain.CareTeam)}
}

// GetActiveDefault implements store.CareTeamStore.
func (m *MockCareTeamStore) GetActiveDefault(ctx context.Context) (*domain.DefaultCareTeam, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.defaults {
		if d.IsActive {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrNoActiveDefaultCareTeam
}

// ReplaceDefault implements store.CareTeamStore.
func (m *MockCareTeamStore) ReplaceDefault(ctx context.Context, team *domain.DefaultCareTeam) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.defaults {
		d.IsActive = false
	}
	cp := *team
	cp.IsActive = true
	m.defaults = append(m.defaults, &cp)
	return nil
}

// ActiveDefaults returns how many default teams are active.
func (m *MockCareTeamStore) ActiveDefaults() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, d := range m.defaults {
		if d.IsActive {
			n++
		}
	}
	return n
}

// Assign implements store.CareTeamStore.
func (m *MockCareTeamStore) Assign(ctx context.Context, team *domain.CareTeam) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AssignCalls++
	cp := *team
	m.teams[team.PatientID] = &cp
	return nil
}

// GetByPatient implements store.CareTeamStore.
func (m *MockCareTeamStore) GetByPatient(ctx context.Context, patientID uuid.UUID) (*domain.CareTeam, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[patientID]
	if !ok {
		return nil, store.ErrCareTeamNotFound
	}
	cp := *t
	return &cp, nil
}

// ListPatientsForProvider implements store.CareTeamStore.
func (m *MockCareTeamStore) ListPatientsForProvider(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for _, t := range m.teams {
		if t.DoctorID == providerID || t.NutritionistID == providerID {
			out = append(out, t.PatientID)
		}
	}
	return out, nil
}
