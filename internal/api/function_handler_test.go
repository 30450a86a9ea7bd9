package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/notify"
	"github.com/careloop/careloop-api/internal/service"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	produced   []task.ProduceRequest
	produceErr error
	summary    task.Summary
	processErr error
	resetFor   uuid.UUID
	reset      int
	fix        task.FixResult
	payments   []service.PaymentCompletion
	paymentErr error
	sent       []notify.Message
	sendErr    error
}

func (f *fakePipeline) Produce(ctx context.Context, req task.ProduceRequest) (task.ProduceResult, error) {
	f.produced = append(f.produced, req)
	if f.produceErr != nil {
		return task.ProduceResult{UserID: req.UserID}, f.produceErr
	}
	return task.ProduceResult{UserID: req.UserID, TasksCreated: 3}, nil
}

func (f *fakePipeline) ProcessBatch(ctx context.Context) (task.Summary, error) {
	return f.summary, f.processErr
}

func (f *fakePipeline) ResetAndProcess(ctx context.Context, userID uuid.UUID) (int, task.Summary, error) {
	f.resetFor = userID
	return f.reset, f.summary, f.processErr
}

func (f *fakePipeline) Retrigger(ctx context.Context, userID uuid.UUID) (task.RetriggerResult, error) {
	f.resetFor = userID
	return task.RetriggerResult{
		ResetTasks: f.reset,
		Produced:   task.ProduceResult{UserID: userID, TasksCreated: 1, TasksExisting: 2},
		Summary:    f.summary,
	}, f.processErr
}

func (f *fakePipeline) FixExistingPatients(ctx context.Context) (task.FixResult, error) {
	return f.fix, f.processErr
}

func (f *fakePipeline) FixExistingProviders(ctx context.Context) (task.FixResult, error) {
	return task.FixResult{UsersScanned: f.fix.UsersScanned, UsersFixed: f.fix.UsersFixed}, f.processErr
}

func (f *fakePipeline) Complete(ctx context.Context, p service.PaymentCompletion) error {
	f.payments = append(f.payments, p)
	return f.paymentErr
}

func (f *fakePipeline) Send(ctx context.Context, msg notify.Message) (string, error) {
	f.sent = append(f.sent, msg)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "msg-123", nil
}

func newFunctionRouter(t *testing.T, f *fakePipeline) *chi.Mux {
	t.Helper()
	h, err := NewFunctionHandler(f, f, f, f, f, testLogger())
	require.NoError(t, err)
	return newRouter(func(r chi.Router) {
		r.Use(asUser(uuid.New(), domain.RoleAdmin))
		r.Route("/functions/v1", h.Routes)
	})
}

func TestNewFunctionHandler(t *testing.T) {
	f := &fakePipeline{}
	_, err := NewFunctionHandler(nil, f, f, f, f, testLogger())
	assert.Error(t, err)
	_, err = NewFunctionHandler(f, f, f, nil, f, testLogger())
	assert.Error(t, err)
	_, err = NewFunctionHandler(f, f, f, f, f, nil)
	assert.Error(t, err)
}

func TestFunctionHandler_Produce(t *testing.T) {
	patientID := uuid.New()

	tests := []struct {
		name       string
		body       any
		produceErr error
		wantCode   int
		wantError  string
	}{
		{name: "success", body: map[string]string{"patient_id": patientID.String()}, wantCode: http.StatusOK},
		{name: "missing patient", body: map[string]string{}, wantCode: http.StatusBadRequest, wantError: "Invalid PatientID: required field"},
		{name: "bad uuid", body: map[string]string{"patient_id": "abc"}, wantCode: http.StatusBadRequest, wantError: "Invalid PatientID: must be a UUID"},
		{name: "malformed json", body: `{"patient_id":`, wantCode: http.StatusBadRequest, wantError: "Invalid request format"},
		{
			name:       "unknown profile",
			body:       map[string]string{"patient_id": patientID.String()},
			produceErr: fmt.Errorf("failed to load profile: %w", store.ErrProfileNotFound),
			wantCode:   http.StatusNotFound,
			wantError:  "Profile not found",
		},
		{
			name:       "database down",
			body:       map[string]string{"patient_id": patientID.String()},
			produceErr: errors.New("pq: connection refused"),
			wantCode:   http.StatusInternalServerError,
			wantError:  "An unexpected error occurred",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakePipeline{produceErr: tc.produceErr}
			rec := doRequest(t, newFunctionRouter(t, f), http.MethodPost, "/functions/v1/registration/produce", tc.body)

			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			if tc.wantError != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tc.wantError, body["error"])
				assert.NotEmpty(t, body["trace_id"])
				assert.NotContains(t, rec.Body.String(), "connection refused")
				return
			}
			assert.Equal(t, true, body["success"])
			assert.Equal(t, float64(3), body["tasks_created"])
			assert.Equal(t, float64(0), body["tasks_existing"])
			require.Len(t, f.produced, 1)
			assert.Equal(t, patientID, f.produced[0].UserID)
			assert.Equal(t, task.EventManual, f.produced[0].Event)
		})
	}
}

func TestFunctionHandler_Process(t *testing.T) {
	f := &fakePipeline{summary: task.Summary{Processed: 4, Succeeded: 2, Rescheduled: 1, Failed: 1}}
	router := newFunctionRouter(t, f)

	for _, body := range []any{nil, "{}"} {
		rec := doRequest(t, router, http.MethodPost, "/functions/v1/registration/process", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"success":true,"processed":4,"succeeded":2,"failed":1,"rescheduled":1,"skipped":0}`,
			rec.Body.String())
	}

	f.processErr = errors.New("failed to load due tasks: timeout")
	rec := doRequest(t, router, http.MethodPost, "/functions/v1/registration/process", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestFunctionHandler_ResetAndRetrigger(t *testing.T) {
	patientID := uuid.New()
	f := &fakePipeline{reset: 2, summary: task.Summary{Processed: 2, Succeeded: 2}}
	router := newFunctionRouter(t, f)

	rec := doRequest(t, router, http.MethodPost, "/functions/v1/registration/reset",
		map[string]string{"patient_id": patientID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["reset_tasks"])
	assert.Equal(t, float64(2), body["succeeded"])
	assert.Contains(t, body["message"], "Reset 2 failed tasks")
	assert.Equal(t, patientID, f.resetFor)

	rec = doRequest(t, router, http.MethodPost, "/functions/v1/registration/retrigger",
		map[string]string{"patient_id": patientID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, float64(2), body["reset_tasks"])
	assert.Equal(t, float64(1), body["tasks_created"])
	assert.Equal(t, float64(2), body["tasks_existing"])
	assert.Equal(t, float64(2), body["processed"])

	rec = doRequest(t, router, http.MethodPost, "/functions/v1/registration/reset", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFunctionHandler_FixExisting(t *testing.T) {
	f := &fakePipeline{fix: task.FixResult{UsersScanned: 5, UsersFixed: 2, TasksCreated: 6}}
	router := newFunctionRouter(t, f)

	rec := doRequest(t, router, http.MethodPost, "/functions/v1/registration/fix-existing-users", "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"success":true,"users_scanned":5,"users_fixed":2,"tasks_created":6,"errors":0}`,
		rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, "/functions/v1/registration/fix-existing-doctors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["users_fixed"])
	assert.Equal(t, float64(0), body["tasks_created"])
}

func TestFunctionHandler_CompletePayment(t *testing.T) {
	patientID, doctorID, nutritionistID := uuid.New(), uuid.New(), uuid.New()

	t.Run("with chosen providers", func(t *testing.T) {
		f := &fakePipeline{}
		rec := doRequest(t, newFunctionRouter(t, f), http.MethodPost, "/functions/v1/payments/complete", map[string]string{
			"patient_id":        patientID.String(),
			"payment_reference": "pi_123",
			"doctor_id":         doctorID.String(),
			"nutritionist_id":   nutritionistID.String(),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, f.payments, 1)
		assert.Equal(t, service.PaymentCompletion{
			PatientID:        patientID,
			PaymentReference: "pi_123",
			DoctorID:         doctorID,
			NutritionistID:   nutritionistID,
		}, f.payments[0])
	})

	t.Run("missing reference", func(t *testing.T) {
		f := &fakePipeline{}
		rec := doRequest(t, newFunctionRouter(t, f), http.MethodPost, "/functions/v1/payments/complete",
			map[string]string{"patient_id": patientID.String()})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.payments)
	})

	t.Run("service rejects", func(t *testing.T) {
		f := &fakePipeline{paymentErr: fmt.Errorf("%w: doctor and nutritionist must be chosen together", domain.ErrValidation)}
		rec := doRequest(t, newFunctionRouter(t, f), http.MethodPost, "/functions/v1/payments/complete", map[string]string{
			"patient_id":        patientID.String(),
			"payment_reference": "pi_123",
			"doctor_id":         doctorID.String(),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFunctionHandler_SendNotification(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		body     any
		sendErr  error
		wantCode int
	}{
		{
			name:     "sms",
			channel:  "sms",
			body:     map[string]string{"to": "+15551234567", "message": "hello"},
			wantCode: http.StatusOK,
		},
		{
			name:     "email with title",
			channel:  "EMAIL",
			body:     map[string]string{"to": "a@example.com", "message": "hello", "title": "Hi"},
			wantCode: http.StatusOK,
		},
		{name: "unknown channel", channel: "pager", body: map[string]string{"to": "x", "message": "y"}, wantCode: http.StatusBadRequest},
		{name: "missing message", channel: "sms", body: map[string]string{"to": "+15551234567"}, wantCode: http.StatusBadRequest},
		{
			name:     "provider not configured",
			channel:  "whatsapp",
			body:     map[string]string{"to": "+15551234567", "message": "hello"},
			sendErr:  notify.ErrProviderNotConfigured,
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakePipeline{sendErr: tc.sendErr}
			rec := doRequest(t, newFunctionRouter(t, f), http.MethodPost, "/functions/v1/notifications/"+tc.channel, tc.body)
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"success":true,"message_id":"msg-123"}`, rec.Body.String())
				require.Len(t, f.sent, 1)
				assert.Equal(t, notify.Channel(strings.ToLower(tc.channel)), f.sent[0].Channel)
			}
		})
	}
}
