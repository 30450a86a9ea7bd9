package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/google/uuid"
)

const profileColumns = `id, role, full_name, email, phone, whatsapp_opt_in,
	registration_status, payment_status, created_at, updated_at`

// PostgresProfileStore implements the store.ProfileStore interface
// using a PostgreSQL database as the storage backend.
type PostgresProfileStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresProfileStore creates a new PostgreSQL implementation of the ProfileStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresProfileStore(db store.DBTX, logger *slog.Logger) *PostgresProfileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProfileStore{
		db:     db,
		logger: logger.With(slog.String("component", "profile_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ensure PostgresProfileStore implements store.ProfileStore interface
var _ store.ProfileStore = (*PostgresProfileStore)(nil)

// Create inserts a profile. Used by seeding and integration tests.
func (s *PostgresProfileStore) Create(ctx context.Context, p *domain.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	status := p.RegistrationStatus
	if status == "" {
		status = domain.RegistrationPaymentPending
	}
	payment := p.PaymentStatus
	if payment == "" {
		payment = domain.PaymentPending
	}
	now := s.now()
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, string(p.Role), p.FullName, nullString(p.Email), nullString(p.Phone), p.WhatsAppOptIn,
		string(status), string(payment), now, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create profile",
			slog.String("error", err.Error()),
			slog.String("user_id", p.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.ProfileStore.GetByID.
func (s *PostgresProfileStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.DebugContext(ctx, "profile not found", slog.String("user_id", id.String()))
			return nil, store.ErrProfileNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get profile",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return nil, MapError(err)
	}
	return p, nil
}

// ListPaidPatients implements store.ProfileStore.ListPaidPatients.
func (s *PostgresProfileStore) ListPaidPatients(ctx context.Context) ([]*domain.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE role = 'patient' AND payment_status = 'completed'
		ORDER BY created_at ASC
	`
	return s.queryProfiles(ctx, query)
}

// ListProvidersBehind implements store.ProfileStore.ListProvidersBehind.
func (s *PostgresProfileStore) ListProvidersBehind(ctx context.Context) ([]*domain.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE role IN ('doctor', 'nutritionist') AND registration_status <> 'fully_registered'
		ORDER BY created_at ASC
	`
	return s.queryProfiles(ctx, query)
}

// AdvanceRegistrationStatus implements store.ProfileStore.AdvanceRegistrationStatus.
// The update matches only rows whose current status precedes next, so the
// status never moves backwards.
func (s *PostgresProfileStore) AdvanceRegistrationStatus(
	ctx context.Context,
	id uuid.UUID,
	next domain.RegistrationStatus,
) (bool, error) {
	if !next.Valid() {
		return false, fmt.Errorf("%w: registration status %q", domain.ErrValidation, next)
	}
	before := next.Predecessors()
	if len(before) == 0 {
		return false, nil
	}

	args := []any{id, string(next), s.now()}
	for _, st := range before {
		args = append(args, string(st))
	}
	query := `
		UPDATE profiles
		SET registration_status = $2, updated_at = $3
		WHERE id = $1 AND registration_status IN (` + placeholders(4, len(before)) + `)
	`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to advance registration status",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()),
			slog.String("status", string(next)))
		return false, MapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "registration status advanced",
			slog.String("user_id", id.String()),
			slog.String("status", string(next)))
	}
	return n > 0, nil
}

// SetPaymentStatus implements store.ProfileStore.SetPaymentStatus.
func (s *PostgresProfileStore) SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE profiles SET payment_status = $2, updated_at = $3 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id, string(status), s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to set payment status",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return MapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrProfileNotFound
	}
	return nil
}

func (s *PostgresProfileStore) queryProfiles(ctx context.Context, query string, args ...any) ([]*domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query profiles", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return out, nil
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		p                     domain.Profile
		role, status, payment string
		email, phone          sql.NullString
	)
	if err := row.Scan(
		&p.ID,
		&role,
		&p.FullName,
		&email,
		&phone,
		&p.WhatsAppOptIn,
		&status,
		&payment,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	p.RegistrationStatus = domain.RegistrationStatus(status)
	p.PaymentStatus = domain.PaymentStatus(payment)
	p.Email = email.String
	p.Phone = phone.String
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
