package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultCareTeam names the providers assigned to patients who did not pick
// their own. At most one row is active at any time.
type DefaultCareTeam struct {
	ID                    uuid.UUID `json:"id"`
	DefaultDoctorID       uuid.UUID `json:"default_doctor_id"`
	DefaultNutritionistID uuid.UUID `json:"default_nutritionist_id"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
}

// NewDefaultCareTeam builds an active default team.
func NewDefaultCareTeam(doctorID, nutritionistID uuid.UUID) (*DefaultCareTeam, error) {
	if doctorID == uuid.Nil || nutritionistID == uuid.Nil {
		return nil, fmt.Errorf("%w: default care team needs a doctor and a nutritionist", ErrValidation)
	}
	return &DefaultCareTeam{
		ID:                    uuid.New(),
		DefaultDoctorID:       doctorID,
		DefaultNutritionistID: nutritionistID,
		IsActive:              true,
		CreatedAt:             time.Now().UTC(),
	}, nil
}

// CareTeam is the set of providers assigned to one patient.
type CareTeam struct {
	PatientID          uuid.UUID `json:"patient_id"`
	DoctorID           uuid.UUID `json:"doctor_id"`
	NutritionistID     uuid.UUID `json:"nutritionist_id"`
	AIAssistantEnabled bool      `json:"ai_assistant_enabled"`
	AssignedAt         time.Time `json:"assigned_at"`
}

// Validate checks that every member of the team is set.
func (t *CareTeam) Validate() error {
	if t.PatientID == uuid.Nil || t.DoctorID == uuid.Nil || t.NutritionistID == uuid.Nil {
		return fmt.Errorf("%w: care team members must be set", ErrValidation)
	}
	return nil
}

// ChatRoomKind distinguishes the purpose of a chat room.
type ChatRoomKind string

const (
	// ChatRoomCareTeam is the shared room between a patient and their care team.
	ChatRoomCareTeam ChatRoomKind = "care_team"
)

// ChatMemberRole records why a participant is in a room.
type ChatMemberRole string

const (
	ChatMemberPatient      ChatMemberRole = "patient"
	ChatMemberDoctor       ChatMemberRole = "doctor"
	ChatMemberNutritionist ChatMemberRole = "nutritionist"
	ChatMemberAIAssistant  ChatMemberRole = "ai_assistant"
)

// ChatMember is one participant of a chat room. The AI assistant has no
// user id.
type ChatMember struct {
	UserID uuid.UUID      `json:"user_id,omitempty"`
	Role   ChatMemberRole `json:"role"`
}

// ChatRoom is a conversation space attached to a patient.
type ChatRoom struct {
	ID        uuid.UUID    `json:"id"`
	PatientID uuid.UUID    `json:"patient_id"`
	Kind      ChatRoomKind `json:"kind"`
	Name      string       `json:"name"`
	Members   []ChatMember `json:"members"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewCareTeamRoom builds the room shared by a patient and their care team.
func NewCareTeamRoom(patient *Profile, team *CareTeam) (*ChatRoom, error) {
	if err := team.Validate(); err != nil {
		return nil, err
	}
	members := []ChatMember{
		{UserID: team.PatientID, Role: ChatMemberPatient},
		{UserID: team.DoctorID, Role: ChatMemberDoctor},
		{UserID: team.NutritionistID, Role: ChatMemberNutritionist},
	}
	if team.AIAssistantEnabled {
		members = append(members, ChatMember{Role: ChatMemberAIAssistant})
	}
	return &ChatRoom{
		ID:        uuid.New(),
		PatientID: team.PatientID,
		Kind:      ChatRoomCareTeam,
		Name:      fmt.Sprintf("Care team: %s", patient.DisplayName()),
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}, nil
}
