package store

import (
	"context"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/google/uuid"
)

// ProfileStore defines the interface for user profile persistence.
type ProfileStore interface {
	// GetByID retrieves a profile by its ID.
	// Returns ErrProfileNotFound if the profile does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)

	// ListPaidPatients returns patients whose onboarding payment has completed.
	ListPaidPatients(ctx context.Context) ([]*domain.Profile, error)

	// ListProvidersBehind returns doctors and nutritionists whose registration
	// status is not yet fully_registered.
	ListProvidersBehind(ctx context.Context) ([]*domain.Profile, error)

	// AdvanceRegistrationStatus moves a profile to next only when its current
	// status ranks strictly lower. Reports whether a row changed.
	AdvanceRegistrationStatus(ctx context.Context, id uuid.UUID, next domain.RegistrationStatus) (bool, error)

	// SetPaymentStatus records the onboarding payment status.
	// Returns ErrProfileNotFound if the profile does not exist.
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
}
