package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrProfileNotFound indicates that the requested profile does not exist.
	ErrProfileNotFound = fmt.Errorf("%w: profile", ErrNotFound)

	// ErrCareTeamNotFound indicates that a patient has no assigned care team.
	ErrCareTeamNotFound = fmt.Errorf("%w: care team", ErrNotFound)

	// ErrNoActiveDefaultCareTeam indicates that no default care team is active.
	ErrNoActiveDefaultCareTeam = fmt.Errorf("%w: active default care team", ErrNotFound)

	// ErrChatRoomNotFound indicates that the requested chat room does not exist.
	ErrChatRoomNotFound = fmt.Errorf("%w: chat room", ErrNotFound)

	// ErrProgressNotFound indicates that no progress row exists for a user.
	ErrProgressNotFound = fmt.Errorf("%w: registration progress", ErrNotFound)

	// ErrTaskNotFound indicates that the requested registration task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: registration task", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "profile", "care_team")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
