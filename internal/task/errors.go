package task

import (
	"errors"

	"github.com/careloop/careloop-api/internal/domain"
)

// Common task pipeline errors
var (
	// ErrClaimLost is returned when a conditional status update matched no
	// row: another processor claimed, finished, or reset the task first.
	ErrClaimLost = errors.New("task claim lost")

	// ErrUnknownTaskType is returned when no executor is registered for a type.
	ErrUnknownTaskType = errors.New("no executor registered for task type")

	// ErrNotPatient is returned when onboarding tasks are requested for a
	// user who is not a patient.
	ErrNotPatient = errors.New("onboarding tasks require a patient profile")

	// ErrPaymentRequired is returned when tasks are requested for a patient
	// whose payment has not completed.
	ErrPaymentRequired = errors.New("onboarding tasks require a completed payment")
)

// Classify maps an execution error to the kind recorded in ErrorDetails.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, domain.ErrPermanent), errors.Is(err, ErrUnknownTaskType):
		return ErrorKindPermanent
	case errors.Is(err, domain.ErrConfiguration):
		return ErrorKindConfiguration
	default:
		return ErrorKindTransient
	}
}
