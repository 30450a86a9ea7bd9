package store

import (
	"context"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/google/uuid"
)

// CareTeamStore defines persistence for default and per-patient care teams.
type CareTeamStore interface {
	// GetActiveDefault returns the single active default care team.
	// Returns ErrNoActiveDefaultCareTeam when none is active.
	GetActiveDefault(ctx context.Context) (*domain.DefaultCareTeam, error)

	// ReplaceDefault deactivates every default care team and inserts team as
	// the active one, atomically.
	ReplaceDefault(ctx context.Context, team *domain.DefaultCareTeam) error

	// Assign creates or replaces the care team of a patient.
	Assign(ctx context.Context, team *domain.CareTeam) error

	// GetByPatient returns the care team of a patient.
	// Returns ErrCareTeamNotFound when the patient has none.
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*domain.CareTeam, error)

	// ListPatientsForProvider returns the ids of patients a provider cares for.
	ListPatientsForProvider(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error)
}

// ChatStore defines persistence for chat rooms.
type ChatStore interface {
	// FindRoom returns the room of the given kind attached to a patient.
	// Returns ErrChatRoomNotFound when none exists.
	FindRoom(ctx context.Context, patientID uuid.UUID, kind domain.ChatRoomKind) (*domain.ChatRoom, error)

	// CreateRoom stores a room and its members. Returns ErrDuplicate when a
	// room of the same kind already exists for the patient.
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error
}

// ProgressStore defines persistence for the registration progress view.
type ProgressStore interface {
	// Get returns the progress of a user.
	// Returns ErrProgressNotFound if no row exists yet.
	Get(ctx context.Context, userID uuid.UUID) (*domain.RegistrationProgress, error)

	// SetPaymentStatus upserts the payment status of a user's progress row.
	SetPaymentStatus(ctx context.Context, userID uuid.UUID, status domain.PaymentStatus) error

	// MarkStep upserts the progress row with step set to true and returns
	// the resulting row.
	MarkStep(ctx context.Context, userID uuid.UUID, step domain.ProgressStep) (*domain.RegistrationProgress, error)

	// MarkCompleted sets registration_completed for a user.
	MarkCompleted(ctx context.Context, userID uuid.UUID) error
}
