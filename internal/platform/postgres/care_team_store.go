package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

// PostgresCareTeamStore implements store.CareTeamStore on the
// default_care_teams and care_teams tables.
type PostgresCareTeamStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCareTeamStore creates a new PostgresCareTeamStore.
func NewPostgresCareTeamStore(db store.DBTX, logger *slog.Logger) *PostgresCareTeamStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCareTeamStore{
		db:     db,
		logger: logger.With(slog.String("component", "care_team_store")),
	}
}

var _ store.CareTeamStore = (*PostgresCareTeamStore)(nil)

// GetActiveDefault implements store.CareTeamStore.GetActiveDefault.
func (s *PostgresCareTeamStore) GetActiveDefault(ctx context.Context) (*domain.DefaultCareTeam, error) {
	query := `
		SELECT id, default_doctor_id, default_nutritionist_id, is_active, created_at
		FROM default_care_teams
		WHERE is_active
	`
	var t domain.DefaultCareTeam
	err := s.db.QueryRowContext(ctx, query).Scan(
		&t.ID,
		&t.DefaultDoctorID,
		&t.DefaultNutritionistID,
		&t.IsActive,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoActiveDefaultCareTeam
		}
		s.logger.ErrorContext(ctx, "failed to get active default care team", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &t, nil
}

// ReplaceDefault implements store.CareTeamStore.ReplaceDefault. Deactivation
// and insertion share one transaction so readers never see two active rows
// or none.
func (s *PostgresCareTeamStore) ReplaceDefault(ctx context.Context, team *domain.DefaultCareTeam) error {
	return store.InTransaction(ctx, s.db, func(ctx context.Context, q store.DBTX) error {
		if _, err := q.ExecContext(ctx, `UPDATE default_care_teams SET is_active = FALSE WHERE is_active`); err != nil {
			s.logger.ErrorContext(ctx, "failed to deactivate default care teams", slog.String("error", err.Error()))
			return MapError(err)
		}
		query := `
			INSERT INTO default_care_teams (id, default_doctor_id, default_nutritionist_id, is_active, created_at)
			VALUES ($1, $2, $3, TRUE, $4)
		`
		if _, err := q.ExecContext(ctx, query,
			team.ID, team.DefaultDoctorID, team.DefaultNutritionistID, team.CreatedAt); err != nil {
			s.logger.ErrorContext(ctx, "failed to insert default care team",
				slog.String("error", err.Error()),
				slog.String("doctor_id", team.DefaultDoctorID.String()),
				slog.String("nutritionist_id", team.DefaultNutritionistID.String()))
			return MapError(err)
		}
		team.IsActive = true
		return nil
	})
}

// Assign implements store.CareTeamStore.Assign.
func (s *PostgresCareTeamStore) Assign(ctx context.Context, team *domain.CareTeam) error {
	if err := team.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO care_teams (patient_id, doctor_id, nutritionist_id, ai_assistant_enabled, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id) DO UPDATE
		SET doctor_id = EXCLUDED.doctor_id,
		    nutritionist_id = EXCLUDED.nutritionist_id,
		    ai_assistant_enabled = EXCLUDED.ai_assistant_enabled,
		    assigned_at = EXCLUDED.assigned_at
	`
	_, err := s.db.ExecContext(ctx, query,
		team.PatientID, team.DoctorID, team.NutritionistID, team.AIAssistantEnabled, team.AssignedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to assign care team",
			slog.String("error", err.Error()),
			slog.String("patient_id", team.PatientID.String()))
		return MapError(err)
	}
	return nil
}

// GetByPatient implements store.CareTeamStore.GetByPatient.
func (s *PostgresCareTeamStore) GetByPatient(ctx context.Context, patientID uuid.UUID) (*domain.CareTeam, error) {
	query := `
		SELECT patient_id, doctor_id, nutritionist_id, ai_assistant_enabled, assigned_at
		FROM care_teams
		WHERE patient_id = $1
	`
	var t domain.CareTeam
	err := s.db.QueryRowContext(ctx, query, patientID).Scan(
		&t.PatientID,
		&t.DoctorID,
		&t.NutritionistID,
		&t.AIAssistantEnabled,
		&t.AssignedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCareTeamNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get care team",
			slog.String("error", err.Error()),
			slog.String("patient_id", patientID.String()))
		return nil, MapError(err)
	}
	return &t, nil
}

// ListPatientsForProvider implements store.CareTeamStore.ListPatientsForProvider.
func (s *PostgresCareTeamStore) ListPatientsForProvider(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT patient_id
		FROM care_teams
		WHERE doctor_id = $1 OR nutritionist_id = $1
		ORDER BY assigned_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, providerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list provider patients",
			slog.String("error", err.Error()),
			slog.String("provider_id", providerID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan patient id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patient rows: %w", err)
	}
	return ids, nil
}
