package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/notify"
	"github.com/careloop/careloop-api/internal/service"
	"github.com/careloop/careloop-api/internal/service/auth"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
		{"trigger key", auth.ErrInvalidTriggerKey, http.StatusUnauthorized, "Invalid trigger key"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "You do not have access to this resource"},
		{"unknown role", fmt.Errorf("%w: \"guest\"", domain.ErrUnknownRole), http.StatusForbidden, "Unknown user role"},
		{"missing profile", fmt.Errorf("load: %w", store.ErrProfileNotFound), http.StatusNotFound, "Profile not found"},
		{"no default team", store.ErrNoActiveDefaultCareTeam, http.StatusNotFound, "No default care team is configured"},
		{"missing progress", store.ErrProgressNotFound, http.StatusNotFound, "Registration progress not found"},
		{"duplicate", store.ErrDuplicate, http.StatusConflict, "Already exists"},
		{"malformed body", shared.ErrMalformedBody, http.StatusBadRequest, "Invalid request format"},
		{"not a patient", task.ErrNotPatient, http.StatusBadRequest, "Registration tasks are only created for patients"},
		{"unpaid patient", fmt.Errorf("produce: %w", task.ErrPaymentRequired), http.StatusConflict, "Payment has not been completed for this patient"},
		{"invalid provider", service.ErrInvalidProvider, http.StatusBadRequest, "Care team providers must be an existing doctor and nutritionist"},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest, "Invalid ID"},
		{"validation", fmt.Errorf("%w: patient id is required", domain.ErrValidation), http.StatusBadRequest, "Invalid request data"},
		{"bad message", notify.ErrInvalidMessage, http.StatusBadRequest, "Invalid notification"},
		{"provider rejected", notify.ErrProviderRejected, http.StatusUnprocessableEntity, "Notification rejected by provider"},
		{"provider missing", notify.ErrProviderNotConfigured, http.StatusServiceUnavailable, "Notification provider not configured"},
		{"backend", errors.New("connection refused"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.msg, GetSafeErrorMessage(tc.err))
		})
	}

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	v := validator.New()

	err := v.Struct(PatientRequest{})
	assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(err))
	assert.Equal(t, "Invalid PatientID: required field", SanitizeValidationError(err))

	err = v.Struct(PatientRequest{PatientID: "secret-value"})
	msg := SanitizeValidationError(err)
	assert.Equal(t, "Invalid PatientID: must be a UUID", msg)
	assert.NotContains(t, msg, "secret-value")

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
