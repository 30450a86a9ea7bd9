package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Profile is a registered user of the platform.
type Profile struct {
	ID                 uuid.UUID          `json:"id"`
	Role               Role               `json:"role"`
	FullName           string             `json:"full_name"`
	Email              string             `json:"email,omitempty"`
	Phone              string             `json:"phone,omitempty"`
	WhatsAppOptIn      bool               `json:"whatsapp_opt_in"`
	RegistrationStatus RegistrationStatus `json:"registration_status"`
	PaymentStatus      PaymentStatus      `json:"payment_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Validate checks the invariants of a profile.
func (p *Profile) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: profile id is empty", ErrInvalidID)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, p.Role)
	}
	if p.RegistrationStatus != "" && !p.RegistrationStatus.Valid() {
		return fmt.Errorf("%w: registration status %q", ErrValidation, p.RegistrationStatus)
	}
	return nil
}

// DisplayName returns the name used when addressing the user.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return "there"
}
