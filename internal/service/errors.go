package service

import (
	"errors"
	"fmt"

	"github.com/careloop/careloop-api/internal/domain"
)

// Common service errors - sentinel errors used across service implementations.
// Callers use errors.Is to check for them; the API layer maps them to HTTP
// status codes and the task processor classifies them by the domain error
// they wrap.
var (
	// ErrNoDefaultCareTeam indicates that a patient needs the default care
	// team but none is active. An operator must configure one.
	ErrNoDefaultCareTeam = fmt.Errorf("%w: no active default care team", domain.ErrConfiguration)

	// ErrCareTeamNotAssigned indicates that a step requiring a care team ran
	// before assignment. The step is retried.
	ErrCareTeamNotAssigned = errors.New("patient has no care team yet")

	// ErrInvalidProvider indicates that a user chosen as a provider does not
	// hold the required role.
	ErrInvalidProvider = fmt.Errorf("%w: invalid care team provider", domain.ErrValidation)

	// ErrNoContactChannel indicates that a user has no address on any
	// notification channel.
	ErrNoContactChannel = fmt.Errorf("%w: no contact channel available", domain.ErrPermanent)
)

// ServiceError wraps an unexpected error with the operation that failed.
type ServiceError struct {
	Operation string // The operation that failed (e.g., "assign_care_team")
	Message   string // Human readable summary
	Err       error  // Original error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
