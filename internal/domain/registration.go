package domain

import "fmt"

// RegistrationStatus is the coarse-grained stage label summarizing a user's
// onboarding progress. Stages only move forward.
type RegistrationStatus string

const (
	RegistrationPaymentPending   RegistrationStatus = "payment_pending"
	RegistrationPaymentComplete  RegistrationStatus = "payment_complete"
	RegistrationCareTeamAssigned RegistrationStatus = "care_team_assigned"
	RegistrationFullyRegistered  RegistrationStatus = "fully_registered"
)

var registrationOrder = []RegistrationStatus{
	RegistrationPaymentPending,
	RegistrationPaymentComplete,
	RegistrationCareTeamAssigned,
	RegistrationFullyRegistered,
}

// Rank returns the position of s in the onboarding sequence, or -1 when s is
// not a known stage.
func (s RegistrationStatus) Rank() int {
	for i, st := range registrationOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s RegistrationStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next is a forward move.
// An unknown or empty current status can advance to any valid stage.
func (s RegistrationStatus) CanAdvanceTo(next RegistrationStatus) bool {
	if !next.Valid() {
		return false
	}
	return s.Rank() < next.Rank()
}

// Predecessors returns all stages strictly before s. Storage layers use it to
// express "advance only if currently behind" as a conditional update.
func (s RegistrationStatus) Predecessors() []RegistrationStatus {
	rank := s.Rank()
	if rank <= 0 {
		return nil
	}
	out := make([]RegistrationStatus, rank)
	copy(out, registrationOrder[:rank])
	return out
}

// ParseRegistrationStatus validates a stored stage label.
func ParseRegistrationStatus(v string) (RegistrationStatus, error) {
	s := RegistrationStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown registration status %q", ErrValidation, v)
	}
	return s, nil
}

// PaymentStatus records whether the onboarding payment has been received.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)
