package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressStep names one boolean of the registration progress view.
type ProgressStep string

const (
	StepCareTeamAssigned        ProgressStep = "care_team_assigned"
	StepChatRoomCreated         ProgressStep = "chat_room_created"
	StepWelcomeNotificationSent ProgressStep = "welcome_notification_sent"
)

// RegistrationProgress is the per-user aggregate of onboarding steps.
type RegistrationProgress struct {
	UserID                  uuid.UUID     `json:"user_id"`
	PaymentStatus           PaymentStatus `json:"payment_status"`
	CareTeamAssigned        bool          `json:"care_team_assigned"`
	ChatRoomCreated         bool          `json:"chat_room_created"`
	WelcomeNotificationSent bool          `json:"welcome_notification_sent"`
	RegistrationCompleted   bool          `json:"registration_completed"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// Set marks a step as done.
func (p *RegistrationProgress) Set(step ProgressStep) {
	switch step {
	case StepCareTeamAssigned:
		p.CareTeamAssigned = true
	case StepChatRoomCreated:
		p.ChatRoomCreated = true
	case StepWelcomeNotificationSent:
		p.WelcomeNotificationSent = true
	}
}

// Complete reports whether every onboarding step has been completed.
func (p *RegistrationProgress) Complete() bool {
	return p.CareTeamAssigned && p.ChatRoomCreated && p.WelcomeNotificationSent
}
