package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondWithJSON(rec, req, http.StatusCreated, map[string]any{"success": true, "tasks_created": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"tasks_created":3}`, rec.Body.String())
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/registration/produce", nil)
	req = req.WithContext(SetTraceID(req.Context()))

	RespondWithError(rec, req, http.StatusBadRequest, "patient_id is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "patient_id is required", body["error"])
	assert.Equal(t, GetTraceID(req.Context()), body["trace_id"])
	assert.NotContains(t, body, "Code")
}

func TestRespondWithErrorAndLog_HidesUnderlyingError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		opts   []ResponseOption
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "client error", status: http.StatusNotFound},
		{name: "elevated client error", status: http.StatusUnauthorized, opts: []ResponseOption{WithElevatedLogLevel()}},
		{name: "rate limited", status: http.StatusTooManyRequests},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/admin/pipeline/stats", nil)
			secret := errors.New("dial tcp postgres://admin:hunter2@db:5432 refused")

			RespondWithErrorAndLog(rec, req, tc.status, "Something went wrong", secret, tc.opts...)

			assert.Equal(t, tc.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "hunter2")
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Something went wrong", body.Error)
			assert.False(t, body.Success)
		})
	}
}
