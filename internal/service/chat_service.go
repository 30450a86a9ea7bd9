package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// ChatService manages the chat rooms created during onboarding.
type ChatService struct {
	profiles store.ProfileStore
	teams    store.CareTeamStore
	chats    store.ChatStore
	logger   *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(
	profiles store.ProfileStore,
	teams store.CareTeamStore,
	chats store.ChatStore,
	logger *slog.Logger,
) (*ChatService, error) {
	if profiles == nil || teams == nil || chats == nil {
		return nil, fmt.Errorf("profile, care team and chat stores cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &ChatService{
		profiles: profiles,
		teams:    teams,
		chats:    chats,
		logger:   logger.With("component", "chat_service"),
	}, nil
}

// EnsureCareTeamRoom returns the care-team room of a patient, creating it if
// needed. Reports whether the room was created by this call. Fails with
// ErrCareTeamNotAssigned until the patient has a care team.
func (s *ChatService) EnsureCareTeamRoom(ctx context.Context, patientID uuid.UUID) (*domain.ChatRoom, bool, error) {
	room, err := s.chats.FindRoom(ctx, patientID, domain.ChatRoomCareTeam)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, store.ErrChatRoomNotFound) {
		return nil, false, fmt.Errorf("failed to look up chat room: %w", err)
	}

	team, err := s.teams.GetByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, store.ErrCareTeamNotFound) {
			return nil, false, ErrCareTeamNotAssigned
		}
		return nil, false, fmt.Errorf("failed to load care team: %w", err)
	}
	patient, err := s.profiles.GetByID(ctx, patientID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load patient: %w", err)
	}

	room, err = domain.NewCareTeamRoom(patient, team)
	if err != nil {
		return nil, false, err
	}
	if err := s.chats.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			existing, findErr := s.chats.FindRoom(ctx, patientID, domain.ChatRoomCareTeam)
			if findErr != nil {
				return nil, false, fmt.Errorf("failed to load concurrently created chat room: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create chat room: %w", err)
	}

	s.logger.InfoContext(ctx, "care team chat room created",
		"patient_id", patientID,
		"chat_room_id", room.ID,
		"members", len(room.Members))
	return room, true, nil
}

// GetCareTeamRoom returns the care-team room of a patient.
func (s *ChatService) GetCareTeamRoom(ctx context.Context, patientID uuid.UUID) (*domain.ChatRoom, error) {
	return s.chats.FindRoom(ctx, patientID, domain.ChatRoomCareTeam)
}
