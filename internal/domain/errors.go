package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnknownRole is returned when a role string does not name one of the
	// supported roles.
	ErrUnknownRole = errors.New("unknown role")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStatusRegression is returned when a registration status would move
	// backwards.
	ErrStatusRegression = errors.New("registration status cannot regress")

	// ErrConfiguration marks failures caused by missing or invalid operator
	// configuration (provider credentials, no default care team). Retrying
	// does not help until an operator intervenes.
	ErrConfiguration = errors.New("configuration error")

	// ErrPermanent marks failures that can never succeed on retry.
	ErrPermanent = errors.New("permanent failure")
)
