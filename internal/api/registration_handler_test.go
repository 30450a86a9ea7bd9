package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistrationReader struct {
	progress map[uuid.UUID]*domain.RegistrationProgress
	tasks    map[uuid.UUID][]*task.RegistrationTask
}

func (f *fakeRegistrationReader) Progress(ctx context.Context, userID uuid.UUID) (*domain.RegistrationProgress, error) {
	p, ok := f.progress[userID]
	if !ok {
		return nil, store.ErrProgressNotFound
	}
	return p, nil
}

func (f *fakeRegistrationReader) ListByUser(ctx context.Context, userID uuid.UUID) ([]*task.RegistrationTask, error) {
	return f.tasks[userID], nil
}

func TestRegistrationHandler(t *testing.T) {
	patientID := uuid.New()
	otherPatient := uuid.New()
	reader := &fakeRegistrationReader{
		progress: map[uuid.UUID]*domain.RegistrationProgress{
			patientID: {UserID: patientID, PaymentStatus: domain.PaymentCompleted, CareTeamAssigned: true},
		},
		tasks: map[uuid.UUID][]*task.RegistrationTask{
			patientID: {{ID: uuid.New(), UserID: patientID, Type: task.TaskTypeAssignCareTeam, Status: task.TaskStatusCompleted}},
		},
	}
	h := NewRegistrationHandler(reader, reader, testLogger())

	router := func(caller uuid.UUID, role domain.Role) *chi.Mux {
		return newRouter(func(r chi.Router) {
			r.Use(asUser(caller, role))
			h.Routes(r)
		})
	}

	tests := []struct {
		name     string
		caller   uuid.UUID
		role     domain.Role
		path     string
		wantCode int
	}{
		{name: "own progress", caller: patientID, role: domain.RolePatient, path: "/registration/" + patientID.String() + "/progress", wantCode: http.StatusOK},
		{name: "own tasks", caller: patientID, role: domain.RolePatient, path: "/registration/" + patientID.String() + "/tasks", wantCode: http.StatusOK},
		{name: "other patient", caller: otherPatient, role: domain.RolePatient, path: "/registration/" + patientID.String() + "/progress", wantCode: http.StatusForbidden},
		{name: "doctor", caller: uuid.New(), role: domain.RoleDoctor, path: "/registration/" + patientID.String() + "/progress", wantCode: http.StatusOK},
		{name: "admin", caller: uuid.New(), role: domain.RoleAdmin, path: "/registration/" + patientID.String() + "/tasks", wantCode: http.StatusOK},
		{name: "bad id", caller: uuid.New(), role: domain.RoleAdmin, path: "/registration/not-a-uuid/progress", wantCode: http.StatusBadRequest},
		{name: "no progress", caller: otherPatient, role: domain.RolePatient, path: "/registration/" + otherPatient.String() + "/progress", wantCode: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router(tc.caller, tc.role), http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
		})
	}

	t.Run("progress body", func(t *testing.T) {
		rec := doRequest(t, router(patientID, domain.RolePatient), http.MethodGet, "/registration/"+patientID.String()+"/progress", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		progress, ok := decodeBody(t, rec)["progress"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, progress["care_team_assigned"])
		assert.Equal(t, false, progress["chat_room_created"])
	})

	t.Run("empty task list is an array", func(t *testing.T) {
		rec := doRequest(t, router(otherPatient, domain.RolePatient), http.MethodGet, "/registration/"+otherPatient.String()+"/tasks", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"tasks":[]}`, rec.Body.String())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		plain := newRouter(h.Routes)
		rec := doRequest(t, plain, http.MethodGet, "/registration/"+patientID.String()+"/progress", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestNewRegistrationHandler_NilLogger(t *testing.T) {
	assert.Panics(t, func() { NewRegistrationHandler(nil, nil, nil) })
}
