package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
)

// asTaskError marks errors that no retry can fix as permanent: bad input,
// a vanished profile.
func asTaskError(err error) error {
	if err == nil || errors.Is(err, domain.ErrPermanent) {
		return err
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, store.ErrProfileNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrPermanent, err)
	}
	return err
}

func encodeResult(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task result: %w", err)
	}
	return b, nil
}

// AssignCareTeamExecutor runs assign_care_team tasks.
type AssignCareTeamExecutor struct {
	Teams *CareTeamService
}

// Execute implements task.Executor.
func (e *AssignCareTeamExecutor) Execute(ctx context.Context, t *task.RegistrationTask) (json.RawMessage, error) {
	var payload task.AssignCareTeamPayload
	if len(t.Payload) > 0 {
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: malformed care team payload: %v", domain.ErrPermanent, err)
		}
	}
	team, err := e.Teams.Assign(ctx, t.UserID, payload.DoctorID, payload.NutritionistID)
	if err != nil {
		return nil, asTaskError(err)
	}
	return encodeResult(team)
}

// CreateChatRoomExecutor runs create_chat_room tasks.
type CreateChatRoomExecutor struct {
	Chats *ChatService
}

// Execute implements task.Executor.
func (e *CreateChatRoomExecutor) Execute(ctx context.Context, t *task.RegistrationTask) (json.RawMessage, error) {
	room, created, err := e.Chats.EnsureCareTeamRoom(ctx, t.UserID)
	if err != nil {
		return nil, asTaskError(err)
	}
	return encodeResult(struct {
		ChatRoomID string `json:"chat_room_id"`
		Created    bool   `json:"created"`
		Members    int    `json:"members"`
	}{room.ID.String(), created, len(room.Members)})
}

// WelcomeNotificationExecutor runs send_welcome_notification tasks.
type WelcomeNotificationExecutor struct {
	Welcome *WelcomeService
}

// Execute implements task.Executor.
func (e *WelcomeNotificationExecutor) Execute(ctx context.Context, t *task.RegistrationTask) (json.RawMessage, error) {
	res, err := e.Welcome.Send(ctx, t.UserID)
	if err != nil {
		return nil, asTaskError(err)
	}
	return encodeResult(res)
}

// RegisterExecutors binds the onboarding executors to their task types.
func RegisterExecutors(
	registry *task.Registry,
	teams *CareTeamService,
	chats *ChatService,
	welcome *WelcomeService,
) error {
	bindings := map[task.TaskType]task.Executor{
		task.TaskTypeAssignCareTeam:          &AssignCareTeamExecutor{Teams: teams},
		task.TaskTypeCreateChatRoom:          &CreateChatRoomExecutor{Chats: chats},
		task.TaskTypeSendWelcomeNotification: &WelcomeNotificationExecutor{Welcome: welcome},
	}
	for _, tt := range task.RequiredSteps() {
		if err := registry.Register(tt, bindings[tt]); err != nil {
			return err
		}
	}
	return nil
}
