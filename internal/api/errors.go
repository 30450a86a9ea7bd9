package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/notify"
	"github.com/careloop/careloop-api/internal/service"
	"github.com/careloop/careloop-api/internal/service/auth"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/go-playground/validator/v10"
)

// ErrForbidden is returned when an authenticated caller may not access a
// resource.
var ErrForbidden = errors.New("forbidden")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidTriggerKey):
		return http.StatusUnauthorized

	case errors.Is(err, ErrForbidden),
		errors.Is(err, domain.ErrUnknownRole):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, task.ErrPaymentRequired):
		return http.StatusConflict

	case errors.Is(err, shared.ErrMalformedBody),
		errors.As(err, &validationErrs),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, task.ErrNotPatient):
		return http.StatusBadRequest

	case errors.Is(err, notify.ErrProviderRejected):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"
	case errors.Is(err, auth.ErrMissingToken):
		return "Authorization required"
	case errors.Is(err, auth.ErrInvalidTriggerKey):
		return "Invalid trigger key"

	case errors.Is(err, domain.ErrUnknownRole):
		return "Unknown user role"
	case errors.Is(err, ErrForbidden):
		return "You do not have access to this resource"

	case errors.Is(err, store.ErrProfileNotFound):
		return "Profile not found"
	case errors.Is(err, store.ErrNoActiveDefaultCareTeam):
		return "No default care team is configured"
	case errors.Is(err, store.ErrCareTeamNotFound):
		return "Care team not found"
	case errors.Is(err, store.ErrChatRoomNotFound):
		return "Chat room not found"
	case errors.Is(err, store.ErrProgressNotFound):
		return "Registration progress not found"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Already exists"

	case errors.Is(err, shared.ErrMalformedBody):
		return "Invalid request format"
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)
	case errors.Is(err, task.ErrNotPatient):
		return "Registration tasks are only created for patients"
	case errors.Is(err, task.ErrPaymentRequired):
		return "Payment has not been completed for this patient"
	case errors.Is(err, service.ErrInvalidProvider):
		return "Care team providers must be an existing doctor and nutritionist"
	case errors.Is(err, notify.ErrInvalidMessage):
		return "Invalid notification"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, notify.ErrProviderRejected):
		return "Notification rejected by provider"
	case errors.Is(err, notify.ErrProviderNotConfigured):
		return "Notification provider not configured"
	case errors.Is(err, service.ErrNoDefaultCareTeam):
		return "No default care team is configured"
	case errors.Is(err, domain.ErrConfiguration):
		return "Service is not configured"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a message naming the
// first invalid field and rule, without echoing the submitted value.
func SanitizeValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Validation error"
	}
	fe := errs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required", "required_with":
		return "required field"
	case "uuid", "uuid4":
		return "must be a UUID"
	case "email":
		return "invalid email format"
	case "e164":
		return "must be an E.164 phone number"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "nefield":
		return "must differ"
	default:
		return "validation failed"
	}
}
