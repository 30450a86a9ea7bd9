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

const progressColumns = `user_id, payment_status, care_team_assigned, chat_room_created,
	welcome_notification_sent, registration_completed, updated_at`

// stepColumns maps progress steps to their boolean column. Only these names
// are ever interpolated into SQL.
var stepColumns = map[domain.ProgressStep]string{
	domain.StepCareTeamAssigned:        "care_team_assigned",
	domain.StepChatRoomCreated:         "chat_room_created",
	domain.StepWelcomeNotificationSent: "welcome_notification_sent",
}

// PostgresProgressStore implements store.ProgressStore on the
// registration_progress table.
type PostgresProgressStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresProgressStore creates a new PostgresProgressStore.
func NewPostgresProgressStore(db store.DBTX, logger *slog.Logger) *PostgresProgressStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProgressStore{
		db:     db,
		logger: logger.With(slog.String("component", "progress_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ store.ProgressStore = (*PostgresProgressStore)(nil)

// Get implements store.ProgressStore.Get.
func (s *PostgresProgressStore) Get(ctx context.Context, userID uuid.UUID) (*domain.RegistrationProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM registration_progress WHERE user_id = $1`
	p, err := scanProgress(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProgressNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get registration progress",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	return p, nil
}

// SetPaymentStatus implements store.ProgressStore.SetPaymentStatus.
func (s *PostgresProgressStore) SetPaymentStatus(ctx context.Context, userID uuid.UUID, status domain.PaymentStatus) error {
	query := `
		INSERT INTO registration_progress (user_id, payment_status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET payment_status = EXCLUDED.payment_status, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, userID, string(status), s.now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to set progress payment status",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return MapError(err)
	}
	return nil
}

// MarkStep implements store.ProgressStore.MarkStep.
func (s *PostgresProgressStore) MarkStep(
	ctx context.Context,
	userID uuid.UUID,
	step domain.ProgressStep,
) (*domain.RegistrationProgress, error) {
	column, ok := stepColumns[step]
	if !ok {
		return nil, fmt.Errorf("%w: unknown progress step %q", domain.ErrValidation, step)
	}
	query := fmt.Sprintf(`
		INSERT INTO registration_progress (user_id, %[1]s, updated_at)
		VALUES ($1, TRUE, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET %[1]s = TRUE, updated_at = EXCLUDED.updated_at
		RETURNING %[2]s
	`, column, progressColumns)

	p, err := scanProgress(s.db.QueryRowContext(ctx, query, userID, s.now()))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark progress step",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("step", string(step)))
		return nil, MapError(err)
	}
	return p, nil
}

// MarkCompleted implements store.ProgressStore.MarkCompleted.
func (s *PostgresProgressStore) MarkCompleted(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE registration_progress
		SET registration_completed = TRUE, updated_at = $2
		WHERE user_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, userID, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark registration completed",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return MapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrProgressNotFound
	}
	return nil
}

func scanProgress(row rowScanner) (*domain.RegistrationProgress, error) {
	var p domain.RegistrationProgress
	var payment string
	if err := row.Scan(
		&p.UserID,
		&payment,
		&p.CareTeamAssigned,
		&p.ChatRoomCreated,
		&p.WelcomeNotificationSent,
		&p.RegistrationCompleted,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.PaymentStatus = domain.PaymentStatus(payment)
	return &p, nil
}
