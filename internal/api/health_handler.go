package api

import (
	"context"
	"net/http"
	"time"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/platform/logger"
	"github.com/careloop/careloop-api/internal/redact"
)

// Pinger checks a backing service, normally the database.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"success": true, "status": "ok", "database": "unchecked"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			logger.FromContext(r.Context()).WarnContext(r.Context(), "health check failed", "error", redact.Error(err))
			status["success"] = false
			status["status"] = "degraded"
			status["database"] = "unreachable"
			shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	shared.RespondWithJSON(w, r, http.StatusOK, status)
}
