package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/settings"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// FeatureFlags exposes the feature flags in effect.
type FeatureFlags interface {
	Current() settings.Features
}

// CareTeamService assigns providers to patients and manages the default
// care team.
type CareTeamService struct {
	profiles store.ProfileStore
	teams    store.CareTeamStore
	features FeatureFlags
	logger   *slog.Logger
	now      func() time.Time
}

// NewCareTeamService creates a CareTeamService.
func NewCareTeamService(
	profiles store.ProfileStore,
	teams store.CareTeamStore,
	features FeatureFlags,
	logger *slog.Logger,
) (*CareTeamService, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile store cannot be nil")
	}
	if teams == nil {
		return nil, fmt.Errorf("care team store cannot be nil")
	}
	if features == nil {
		return nil, fmt.Errorf("feature flags cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &CareTeamService{
		profiles: profiles,
		teams:    teams,
		features: features,
		logger:   logger.With("component", "care_team_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Assign gives a patient a care team. Explicit providers win; otherwise the
// active default care team is used. A patient who already has a team keeps
// it unless explicit providers differ from it.
func (s *CareTeamService) Assign(
	ctx context.Context,
	patientID, doctorID, nutritionistID uuid.UUID,
) (*domain.CareTeam, error) {
	patient, err := s.profiles.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	if patient.Role != domain.RolePatient {
		return nil, fmt.Errorf("%w: user %s is a %s, not a patient", domain.ErrValidation, patientID, patient.Role)
	}

	explicit := doctorID != uuid.Nil && nutritionistID != uuid.Nil

	existing, err := s.teams.GetByPatient(ctx, patientID)
	switch {
	case err == nil:
		if !explicit || (existing.DoctorID == doctorID && existing.NutritionistID == nutritionistID) {
			s.logger.DebugContext(ctx, "care team already assigned", "patient_id", patientID)
			return existing, nil
		}
	case errors.Is(err, store.ErrCareTeamNotFound):
	default:
		return nil, fmt.Errorf("failed to load care team: %w", err)
	}

	if explicit {
		if err := s.checkProvider(ctx, doctorID, domain.RoleDoctor); err != nil {
			return nil, err
		}
		if err := s.checkProvider(ctx, nutritionistID, domain.RoleNutritionist); err != nil {
			return nil, err
		}
	} else {
		def, err := s.teams.GetActiveDefault(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNoActiveDefaultCareTeam) {
				return nil, ErrNoDefaultCareTeam
			}
			return nil, fmt.Errorf("failed to load default care team: %w", err)
		}
		doctorID, nutritionistID = def.DefaultDoctorID, def.DefaultNutritionistID
	}

	team := &domain.CareTeam{
		PatientID:          patientID,
		DoctorID:           doctorID,
		NutritionistID:     nutritionistID,
		AIAssistantEnabled: s.features.Current().AIAssistantEnabled,
		AssignedAt:         s.now(),
	}
	if err := team.Validate(); err != nil {
		return nil, err
	}
	if err := s.teams.Assign(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to save care team: %w", err)
	}

	s.logger.InfoContext(ctx, "care team assigned",
		"patient_id", patientID,
		"doctor_id", doctorID,
		"nutritionist_id", nutritionistID,
		"explicit", explicit)
	return team, nil
}

func (s *CareTeamService) checkProvider(ctx context.Context, id uuid.UUID, role domain.Role) error {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return fmt.Errorf("%w: %s %s does not exist", ErrInvalidProvider, role, id)
		}
		return fmt.Errorf("failed to load %s: %w", role, err)
	}
	if p.Role != role {
		return fmt.Errorf("%w: user %s is a %s, expected %s", ErrInvalidProvider, id, p.Role, role)
	}
	return nil
}

// SetDefault replaces the default care team. Both providers must exist and
// hold the matching role.
func (s *CareTeamService) SetDefault(
	ctx context.Context,
	doctorID, nutritionistID uuid.UUID,
) (*domain.DefaultCareTeam, error) {
	team, err := domain.NewDefaultCareTeam(doctorID, nutritionistID)
	if err != nil {
		return nil, err
	}
	if err := s.checkProvider(ctx, doctorID, domain.RoleDoctor); err != nil {
		return nil, err
	}
	if err := s.checkProvider(ctx, nutritionistID, domain.RoleNutritionist); err != nil {
		return nil, err
	}
	team.CreatedAt = s.now()

	if err := s.teams.ReplaceDefault(ctx, team); err != nil {
		return nil, NewServiceError("set_default_care_team", "failed to replace default care team", err)
	}
	s.logger.InfoContext(ctx, "default care team replaced",
		"default_care_team_id", team.ID,
		"doctor_id", doctorID,
		"nutritionist_id", nutritionistID)
	return team, nil
}

// GetDefault returns the active default care team.
func (s *CareTeamService) GetDefault(ctx context.Context) (*domain.DefaultCareTeam, error) {
	team, err := s.teams.GetActiveDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load default care team: %w", err)
	}
	return team, nil
}

// GetPatientTeam returns the care team of a patient.
func (s *CareTeamService) GetPatientTeam(ctx context.Context, patientID uuid.UUID) (*domain.CareTeam, error) {
	return s.teams.GetByPatient(ctx, patientID)
}

// PatientsOf returns the patients a provider cares for.
func (s *CareTeamService) PatientsOf(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.teams.ListPatientsForProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return ids, nil
}
