package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/settings"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/google/uuid"
)

// PatientDashboard is what a patient sees after signing in.
type PatientDashboard struct {
	Progress   *domain.RegistrationProgress `json:"progress,omitempty"`
	CareTeam   *domain.CareTeam             `json:"care_team,omitempty"`
	ChatRoomID *uuid.UUID                   `json:"chat_room_id,omitempty"`
	Tasks      []*task.RegistrationTask     `json:"tasks"`
}

// ProviderDashboard is what a doctor or nutritionist sees.
type ProviderDashboard struct {
	PatientIDs []uuid.UUID `json:"patient_ids"`
}

// AdminDashboard is what an administrator sees.
type AdminDashboard struct {
	Pipeline        task.Stats              `json:"pipeline"`
	DefaultCareTeam *domain.DefaultCareTeam `json:"default_care_team,omitempty"`
}

// Dashboard is the role-specific landing view. Exactly one of the view
// fields is set, matching Role.
type Dashboard struct {
	Role               domain.Role        `json:"role"`
	RegistrationStatus string             `json:"registration_status"`
	Features           settings.Features  `json:"features"`
	Patient            *PatientDashboard  `json:"patient,omitempty"`
	Provider           *ProviderDashboard `json:"provider,omitempty"`
	Admin              *AdminDashboard    `json:"admin,omitempty"`
}

// viewBuilder fills the role-specific part of a dashboard.
type viewBuilder func(ctx context.Context, p *domain.Profile, d *Dashboard) error

// DashboardService builds dashboards with one builder per role.
type DashboardService struct {
	profiles store.ProfileStore
	progress store.ProgressStore
	teams    store.CareTeamStore
	chats    store.ChatStore
	tasks    task.Store
	features FeatureFlags
	views    map[domain.Role]viewBuilder
	logger   *slog.Logger
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(
	profiles store.ProfileStore,
	progress store.ProgressStore,
	teams store.CareTeamStore,
	chats store.ChatStore,
	tasks task.Store,
	features FeatureFlags,
	logger *slog.Logger,
) (*DashboardService, error) {
	if profiles == nil || progress == nil || teams == nil || chats == nil || tasks == nil {
		return nil, fmt.Errorf("dashboard stores cannot be nil")
	}
	if features == nil || logger == nil {
		return nil, fmt.Errorf("feature flags and logger cannot be nil")
	}
	s := &DashboardService{
		profiles: profiles,
		progress: progress,
		teams:    teams,
		chats:    chats,
		tasks:    tasks,
		features: features,
		logger:   logger.With("component", "dashboard_service"),
	}
	s.views = map[domain.Role]viewBuilder{
		domain.RolePatient:      s.patientView,
		domain.RoleDoctor:       s.providerView,
		domain.RoleNutritionist: s.providerView,
		domain.RoleAdmin:        s.adminView,
	}
	return s, nil
}

// ForUser builds the dashboard of a signed-in user. Unknown roles are
// rejected with domain.ErrUnknownRole.
func (s *DashboardService) ForUser(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	build, ok := s.views[profile.Role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, profile.Role)
	}

	d := &Dashboard{
		Role:               profile.Role,
		RegistrationStatus: string(profile.RegistrationStatus),
		Features:           s.features.Current(),
	}
	if err := build(ctx, profile, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DashboardService) patientView(ctx context.Context, p *domain.Profile, d *Dashboard) error {
	view := &PatientDashboard{}

	progress, err := s.progress.Get(ctx, p.ID)
	switch {
	case err == nil:
		view.Progress = progress
	case !errors.Is(err, store.ErrProgressNotFound):
		return fmt.Errorf("failed to load progress: %w", err)
	}

	team, err := s.teams.GetByPatient(ctx, p.ID)
	switch {
	case err == nil:
		view.CareTeam = team
	case !errors.Is(err, store.ErrCareTeamNotFound):
		return fmt.Errorf("failed to load care team: %w", err)
	}

	if d.Features.ChatEnabled {
		room, err := s.chats.FindRoom(ctx, p.ID, domain.ChatRoomCareTeam)
		switch {
		case err == nil:
			view.ChatRoomID = &room.ID
		case !errors.Is(err, store.ErrChatRoomNotFound):
			return fmt.Errorf("failed to load chat room: %w", err)
		}
	}

	tasks, err := s.tasks.ListByUser(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	view.Tasks = tasks

	d.Patient = view
	return nil
}

func (s *DashboardService) providerView(ctx context.Context, p *domain.Profile, d *Dashboard) error {
	ids, err := s.teams.ListPatientsForProvider(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to list patients: %w", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	d.Provider = &ProviderDashboard{PatientIDs: ids}
	return nil
}

func (s *DashboardService) adminView(ctx context.Context, p *domain.Profile, d *Dashboard) error {
	stats, err := s.tasks.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pipeline stats: %w", err)
	}
	view := &AdminDashboard{Pipeline: stats}

	def, err := s.teams.GetActiveDefault(ctx)
	switch {
	case err == nil:
		view.DefaultCareTeam = def
	case !errors.Is(err, store.ErrNoActiveDefaultCareTeam):
		return fmt.Errorf("failed to load default care team: %w", err)
	}

	d.Admin = view
	return nil
}
