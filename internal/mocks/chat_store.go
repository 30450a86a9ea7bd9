package mocks

import (
	"context"
	"sync"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

type roomKey struct {
	patientID uuid.UUID
	kind      domain.ChatRoomKind
}

// MockChatStore is an in-memory store.ChatStore for testing.
type MockChatStore struct {
	mu    sync.RWMutex
	rooms map[roomKey]*domain.ChatRoom

	// Err, when set, is returned by every method.
	Err error

	// CreateCalls counts successful calls to CreateRoom.
	CreateCalls int
}

// NewMockChatStore creates an empty chat store.
func NewMockChatStore() *MockChatStore {
	return &MockChatStore{rooms: make(map[roomKey]*domain.ChatRoom)}
}

// FindRoom implements store.ChatStore.
func (m *MockChatStore) FindRoom(
	ctx context.Context,
	patientID uuid.UUID,
	kind domain.ChatRoomKind,
) (*domain.ChatRoom, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomKey{patientID, kind}]
	if !ok {
		return nil, store.ErrChatRoomNotFound
	}
	cp := *r
	return &cp, nil
}

// CreateRoom implements store.ChatStore.
func (m *MockChatStore) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := roomKey{room.PatientID, room.Kind}
	if _, ok := m.rooms[k]; ok {
		return store.ErrDuplicate
	}
	cp := *room
	m.rooms[k] = &cp
	m.CreateCalls++
	return nil
}
