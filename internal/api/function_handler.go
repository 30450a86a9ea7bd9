package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/notify"
	"github.com/careloop/careloop-api/internal/platform/logger"
	"github.com/careloop/careloop-api/internal/service"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TaskProducer creates onboarding tasks.
type TaskProducer interface {
	Produce(ctx context.Context, req task.ProduceRequest) (task.ProduceResult, error)
}

// BatchProcessor runs one batch of due tasks.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (task.Summary, error)
}

// PipelineRepairer holds the operator escape hatches.
type PipelineRepairer interface {
	ResetAndProcess(ctx context.Context, userID uuid.UUID) (int, task.Summary, error)
	Retrigger(ctx context.Context, userID uuid.UUID) (task.RetriggerResult, error)
	FixExistingPatients(ctx context.Context) (task.FixResult, error)
	FixExistingProviders(ctx context.Context) (task.FixResult, error)
}

// PaymentRecorder records completed payments.
type PaymentRecorder interface {
	Complete(ctx context.Context, p service.PaymentCompletion) error
}

// PatientRequest is the body of the per-patient pipeline functions.
type PatientRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
}

// PaymentCompleteRequest is the body of POST /payments/complete.
type PaymentCompleteRequest struct {
	PatientID        string `json:"patient_id"        validate:"required,uuid"`
	PaymentReference string `json:"payment_reference" validate:"required,max=255"`
	DoctorID         string `json:"doctor_id"         validate:"omitempty,uuid"`
	NutritionistID   string `json:"nutritionist_id"   validate:"omitempty,uuid"`
}

// NotificationRequest is the body of POST /notifications/{channel}.
type NotificationRequest struct {
	To      string `json:"to"      validate:"required"`
	Message string `json:"message" validate:"required,max=4096"`
	Title   string `json:"title"   validate:"max=200"`
}

// ProduceResponse is returned by the producer function.
type ProduceResponse struct {
	Success bool `json:"success"`
	task.ProduceResult
}

// ProcessResponse is returned by the processor function.
type ProcessResponse struct {
	Success bool `json:"success"`
	task.Summary
}

// ResetResponse is returned by the reset function.
type ResetResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ResetTasks int    `json:"reset_tasks"`
	task.Summary
}

// RetriggerResponse is returned by the retrigger function.
type RetriggerResponse struct {
	Success       bool `json:"success"`
	ResetTasks    int  `json:"reset_tasks"`
	TasksCreated  int  `json:"tasks_created"`
	TasksExisting int  `json:"tasks_existing"`
	task.Summary
}

// FixResponse is returned by the backfill functions.
type FixResponse struct {
	Success bool `json:"success"`
	task.FixResult
}

// NotificationResponse is returned by the notification functions.
type NotificationResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
}

// FunctionHandler serves the function gateway: the pipeline triggers called
// by schedulers, admin tools and the payment flow.
type FunctionHandler struct {
	producer  TaskProducer
	processor BatchProcessor
	repairer  PipelineRepairer
	payments  PaymentRecorder
	notifier  service.Notifier
	logger    *slog.Logger
}

// NewFunctionHandler creates a FunctionHandler.
func NewFunctionHandler(
	producer TaskProducer,
	processor BatchProcessor,
	repairer PipelineRepairer,
	payments PaymentRecorder,
	notifier service.Notifier,
	logger *slog.Logger,
) (*FunctionHandler, error) {
	if producer == nil || processor == nil || repairer == nil {
		return nil, fmt.Errorf("producer, processor and repairer cannot be nil")
	}
	if payments == nil || notifier == nil {
		return nil, fmt.Errorf("payment recorder and notifier cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &FunctionHandler{
		producer:  producer,
		processor: processor,
		repairer:  repairer,
		payments:  payments,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "function_handler")),
	}, nil
}

// Routes mounts the functions on r.
func (h *FunctionHandler) Routes(r chi.Router) {
	r.Post("/registration/produce", h.Produce)
	r.Post("/payments/complete", h.CompletePayment)
	r.Post("/registration/process", h.Process)
	r.Post("/registration/reset", h.Reset)
	r.Post("/registration/retrigger", h.Retrigger)
	r.Post("/registration/fix-existing-users", h.FixExistingUsers)
	r.Post("/registration/fix-existing-doctors", h.FixExistingDoctors)
	r.Post("/notifications/{channel}", h.SendNotification)
}

func (h *FunctionHandler) decodePatient(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req PatientRequest
	if !decodeAndValidate(w, r, &req) {
		return uuid.Nil, false
	}
	id, err := parseUUIDField("patient_id", req.PatientID)
	if err != nil {
		handleError(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}

// Produce handles POST /registration/produce.
func (h *FunctionHandler) Produce(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.decodePatient(w, r)
	if !ok {
		return
	}

	res, err := h.producer.Produce(r.Context(), task.ProduceRequest{UserID: patientID, Event: task.EventManual})
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ProduceResponse{Success: true, ProduceResult: res})
}

// CompletePayment handles POST /payments/complete.
func (h *FunctionHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentCompleteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	completion := service.PaymentCompletion{PaymentReference: req.PaymentReference}
	var err error
	if completion.PatientID, err = parseUUIDField("patient_id", req.PatientID); err == nil {
		if completion.DoctorID, err = parseUUIDField("doctor_id", req.DoctorID); err == nil {
			completion.NutritionistID, err = parseUUIDField("nutritionist_id", req.NutritionistID)
		}
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.payments.Complete(r.Context(), completion); err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success":    true,
		"patient_id": completion.PatientID,
	})
}

// Process handles POST /registration/process. The body is ignored.
func (h *FunctionHandler) Process(w http.ResponseWriter, r *http.Request) {
	summary, err := h.processor.ProcessBatch(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ProcessResponse{Success: true, Summary: summary})
}

// Reset handles POST /registration/reset.
func (h *FunctionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.decodePatient(w, r)
	if !ok {
		return
	}

	reset, summary, err := h.repairer.ResetAndProcess(r.Context(), patientID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).InfoContext(r.Context(), "registration tasks reset",
		"patient_id", patientID,
		"reset_tasks", reset,
		"triggered_by_scheduler", shared.IsTrigger(r.Context()))
	shared.RespondWithJSON(w, r, http.StatusOK, ResetResponse{
		Success:    true,
		Message:    fmt.Sprintf("Reset %d failed tasks and processed the next batch", reset),
		ResetTasks: reset,
		Summary:    summary,
	})
}

// Retrigger handles POST /registration/retrigger.
func (h *FunctionHandler) Retrigger(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.decodePatient(w, r)
	if !ok {
		return
	}

	res, err := h.repairer.Retrigger(r.Context(), patientID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RetriggerResponse{
		Success:       true,
		ResetTasks:    res.ResetTasks,
		TasksCreated:  res.Produced.TasksCreated,
		TasksExisting: res.Produced.TasksExisting,
		Summary:       res.Summary,
	})
}

// FixExistingUsers handles POST /registration/fix-existing-users.
func (h *FunctionHandler) FixExistingUsers(w http.ResponseWriter, r *http.Request) {
	res, err := h.repairer.FixExistingPatients(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, FixResponse{Success: true, FixResult: res})
}

// FixExistingDoctors handles POST /registration/fix-existing-doctors.
func (h *FunctionHandler) FixExistingDoctors(w http.ResponseWriter, r *http.Request) {
	res, err := h.repairer.FixExistingProviders(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, FixResponse{Success: true, FixResult: res})
}

// SendNotification handles POST /notifications/{channel}.
func (h *FunctionHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	channel, err := notify.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req NotificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.notifier.Send(r.Context(), notify.Message{
		Channel: channel,
		To:      req.To,
		Title:   req.Title,
		Body:    req.Message,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, NotificationResponse{Success: true, MessageID: id})
}
