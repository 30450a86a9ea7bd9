package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ProgressReader reads registration progress.
type ProgressReader interface {
	Progress(ctx context.Context, userID uuid.UUID) (*domain.RegistrationProgress, error)
}

// TaskLister lists the tasks of a user.
type TaskLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*task.RegistrationTask, error)
}

// RegistrationHandler exposes registration progress and tasks.
type RegistrationHandler struct {
	progress ProgressReader
	tasks    TaskLister
	logger   *slog.Logger
}

// NewRegistrationHandler creates a RegistrationHandler.
func NewRegistrationHandler(progress ProgressReader, tasks TaskLister, logger *slog.Logger) *RegistrationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for RegistrationHandler")
	}
	return &RegistrationHandler{
		progress: progress,
		tasks:    tasks,
		logger:   logger.With(slog.String("component", "registration_handler")),
	}
}

// Routes mounts the handler on r.
func (h *RegistrationHandler) Routes(r chi.Router) {
	r.Get("/registration/{user_id}/progress", h.GetProgress)
	r.Get("/registration/{user_id}/tasks", h.ListTasks)
}

// targetUser resolves the path user and checks the caller may read it.
func (h *RegistrationHandler) targetUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	callerID, role, ok := requirePrincipal(w, r)
	if !ok {
		return uuid.Nil, false
	}
	userID, err := getPathUUID(r, "user_id")
	if err != nil {
		handleError(w, r, err)
		return uuid.Nil, false
	}
	if !canViewUser(callerID, role, userID) {
		handleError(w, r, ErrForbidden, shared.WithElevatedLogLevel())
		return uuid.Nil, false
	}
	return userID, true
}

// GetProgress handles GET /api/registration/{user_id}/progress.
func (h *RegistrationHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	progress, err := h.progress.Progress(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success":  true,
		"progress": progress,
	})
}

// ListTasks handles GET /api/registration/{user_id}/tasks.
func (h *RegistrationHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	tasks, err := h.tasks.ListByUser(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.RegistrationTask{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"tasks":   tasks,
	})
}
