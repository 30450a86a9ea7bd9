package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/platform/logger"
	"github.com/careloop/careloop-api/internal/settings"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DefaultCareTeamManager reads and replaces the default care team.
type DefaultCareTeamManager interface {
	GetDefault(ctx context.Context) (*domain.DefaultCareTeam, error)
	SetDefault(ctx context.Context, doctorID, nutritionistID uuid.UUID) (*domain.DefaultCareTeam, error)
}

// StatsReader reports task counts.
type StatsReader interface {
	Stats(ctx context.Context) (task.Stats, error)
}

// SettingsReloader re-reads the feature flags.
type SettingsReloader interface {
	Reload(ctx context.Context) (settings.Snapshot, error)
}

// SetDefaultCareTeamRequest is the body of PUT /api/admin/care-team/default.
type SetDefaultCareTeamRequest struct {
	DoctorID       string `json:"doctor_id"       validate:"required,uuid"`
	NutritionistID string `json:"nutritionist_id" validate:"required,uuid,nefield=DoctorID"`
}

// AdminHandler serves the administrator endpoints.
type AdminHandler struct {
	teams    DefaultCareTeamManager
	stats    StatsReader
	settings SettingsReloader
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	teams DefaultCareTeamManager,
	stats StatsReader,
	settings SettingsReloader,
	logger *slog.Logger,
) *AdminHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AdminHandler")
	}
	return &AdminHandler{
		teams:    teams,
		stats:    stats,
		settings: settings,
		logger:   logger.With(slog.String("component", "admin_handler")),
	}
}

// Routes mounts the handler on r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/care-team/default", h.GetDefaultCareTeam)
	r.Put("/care-team/default", h.SetDefaultCareTeam)
	r.Get("/pipeline/stats", h.PipelineStats)
	r.Post("/settings/features/reload", h.ReloadFeatures)
}

// GetDefaultCareTeam handles GET /api/admin/care-team/default.
func (h *AdminHandler) GetDefaultCareTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.teams.GetDefault(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success":           true,
		"default_care_team": team,
	})
}

// SetDefaultCareTeam handles PUT /api/admin/care-team/default.
func (h *AdminHandler) SetDefaultCareTeam(w http.ResponseWriter, r *http.Request) {
	var req SetDefaultCareTeamRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	doctorID, err := parseUUIDField("doctor_id", req.DoctorID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	nutritionistID, err := parseUUIDField("nutritionist_id", req.NutritionistID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	team, err := h.teams.SetDefault(r.Context(), doctorID, nutritionistID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	adminID, _, _ := shared.Principal(r.Context())
	logger.FromContext(r.Context()).InfoContext(r.Context(), "default care team changed",
		"admin_id", adminID,
		"default_care_team_id", team.ID)
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success":           true,
		"default_care_team": team,
	})
}

// PipelineStats handles GET /api/admin/pipeline/stats.
func (h *AdminHandler) PipelineStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

// ReloadFeatures handles POST /api/admin/settings/features/reload. Invalid
// flags are rejected and the previous flags stay in effect.
func (h *AdminHandler) ReloadFeatures(w http.ResponseWriter, r *http.Request) {
	snap, err := h.settings.Reload(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"features":  snap.Features,
		"loaded_at": snap.LoadedAt,
	})
}
