package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a task may move from one status to another.
//
//	pending    -> processing
//	processing -> completed | pending (retry) | failed
//	failed     -> pending (reset) | processing (retry ceiling raised)
//
// completed is terminal.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusProcessing
	case TaskStatusProcessing:
		return to == TaskStatusCompleted || to == TaskStatusPending || to == TaskStatusFailed
	case TaskStatusFailed:
		return to == TaskStatusPending || to == TaskStatusProcessing
	default:
		return false
	}
}

// TaskType identifies the onboarding step a task performs.
type TaskType string

// Task type constants
const (
	TaskTypeAssignCareTeam          TaskType = "assign_care_team"
	TaskTypeCreateChatRoom          TaskType = "create_chat_room"
	TaskTypeSendWelcomeNotification TaskType = "send_welcome_notification"
)

// RequiredSteps returns the task types every new patient needs, in
// execution order.
func RequiredSteps() []TaskType {
	return []TaskType{
		TaskTypeAssignCareTeam,
		TaskTypeCreateChatRoom,
		TaskTypeSendWelcomeNotification,
	}
}

// Priority returns the default priority of a task type. Higher runs first,
// so a care team exists before its chat room is created.
func (t TaskType) Priority() int {
	switch t {
	case TaskTypeAssignCareTeam:
		return 30
	case TaskTypeCreateChatRoom:
		return 20
	case TaskTypeSendWelcomeNotification:
		return 10
	default:
		return 0
	}
}

// Step returns the registration progress flag set when a task of this type
// completes.
func (t TaskType) Step() (domain.ProgressStep, bool) {
	switch t {
	case TaskTypeAssignCareTeam:
		return domain.StepCareTeamAssigned, true
	case TaskTypeCreateChatRoom:
		return domain.StepChatRoomCreated, true
	case TaskTypeSendWelcomeNotification:
		return domain.StepWelcomeNotificationSent, true
	default:
		return "", false
	}
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	_, ok := t.Step()
	return ok
}

// ErrorKind classifies a task execution failure.
type ErrorKind string

const (
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindPermanent     ErrorKind = "permanent"
)

// ErrorDetails is the structured error recorded on a task after a failed
// attempt. Message is always redacted.
type ErrorDetails struct {
	Message    string    `json:"message"`
	Kind       ErrorKind `json:"kind"`
	TaskType   TaskType  `json:"task_type"`
	Attempt    int       `json:"attempt"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RegistrationTask is one persisted onboarding step for one user.
type RegistrationTask struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Type          TaskType        `json:"task_type"`
	Status        TaskStatus      `json:"status"`
	RetryCount    int             `json:"retry_count"`
	Priority      int             `json:"priority"`
	NextRetryAt   time.Time       `json:"next_retry_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ErrorDetails  *ErrorDetails   `json:"error_details,omitempty"`
	ResultPayload json.RawMessage `json:"result_payload,omitempty"`
	ClaimedBy     string          `json:"claimed_by,omitempty"`
	ClaimedAt     *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewRegistrationTask creates a pending task due immediately.
func NewRegistrationTask(userID uuid.UUID, taskType TaskType, payload json.RawMessage, now time.Time) (*RegistrationTask, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: task user id is empty", domain.ErrInvalidID)
	}
	if !taskType.Valid() {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, taskType)
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return &RegistrationTask{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        taskType,
		Status:      TaskStatusPending,
		RetryCount:  0,
		Priority:    taskType.Priority(),
		NextRetryAt: now,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Due reports whether the task is eligible for processing at now under the
// given policy. A failed task is only due again when it failed by exhausting
// a retry ceiling that has since been raised; permanent failures wait for a
// reset.
func (t *RegistrationTask) Due(now time.Time, policy RetryPolicy) bool {
	if t.NextRetryAt.After(now) {
		return false
	}
	switch t.Status {
	case TaskStatusPending:
		return true
	case TaskStatusFailed:
		if t.ErrorDetails != nil && t.ErrorDetails.Kind == ErrorKindPermanent {
			return false
		}
		return !policy.Exhausted(t.RetryCount)
	default:
		return false
	}
}

// Clone returns a deep copy of the task.
func (t *RegistrationTask) Clone() *RegistrationTask {
	c := *t
	if t.Payload != nil {
		c.Payload = append(json.RawMessage(nil), t.Payload...)
	}
	if t.ResultPayload != nil {
		c.ResultPayload = append(json.RawMessage(nil), t.ResultPayload...)
	}
	if t.ErrorDetails != nil {
		d := *t.ErrorDetails
		c.ErrorDetails = &d
	}
	if t.ClaimedAt != nil {
		at := *t.ClaimedAt
		c.ClaimedAt = &at
	}
	return &c
}
