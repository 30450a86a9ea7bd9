package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/service/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	param := chi.URLParam(r, paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	id, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// parseUUIDField parses an optional UUID body field. Empty means uuid.Nil.
func parseUUIDField(name, value string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, name)
	}
	return id, nil
}

// decodeAndValidate reads a JSON body into v and validates it, writing a 400
// response on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		handleError(w, r, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		handleError(w, r, err)
		return false
	}
	return true
}

// handleError writes the mapped status and safe message for err.
func handleError(w http.ResponseWriter, r *http.Request, err error, opts ...shared.ResponseOption) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, opts...)
}

// requirePrincipal returns the authenticated caller or writes a 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.Role, bool) {
	userID, role, ok := shared.Principal(r.Context())
	if !ok {
		handleError(w, r, auth.ErrMissingToken)
		return uuid.Nil, "", false
	}
	return userID, role, true
}

// canViewUser reports whether the caller may read another user's
// registration data. Patients only see their own; staff see everyone.
func canViewUser(callerID uuid.UUID, role domain.Role, target uuid.UUID) bool {
	return callerID == target || role != domain.RolePatient
}
