package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/service"
	"github.com/careloop/careloop-api/internal/settings"
	"github.com/google/uuid"
)

// DashboardBuilder builds the landing view of a user.
type DashboardBuilder interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*service.Dashboard, error)
}

// FeatureSnapshotter exposes the feature flags in effect.
type FeatureSnapshotter interface {
	Snapshot() settings.Snapshot
}

// DashboardHandler serves the signed-in user's views.
type DashboardHandler struct {
	dashboards DashboardBuilder
	features   FeatureSnapshotter
	logger     *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(dashboards DashboardBuilder, features FeatureSnapshotter, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for DashboardHandler")
	}
	return &DashboardHandler{
		dashboards: dashboards,
		features:   features,
		logger:     logger.With(slog.String("component", "dashboard_handler")),
	}
}

// GetDashboard handles GET /api/me/dashboard.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	d, err := h.dashboards.ForUser(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"dashboard": d,
	})
}

// GetFeatures handles GET /api/settings/features.
func (h *DashboardHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	snap := h.features.Snapshot()
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"features":  snap.Features,
		"loaded_at": snap.LoadedAt,
	})
}
