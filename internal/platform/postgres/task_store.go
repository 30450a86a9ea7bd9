package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/google/uuid"
)

const taskColumns = `id, user_id, task_type, status, retry_count, priority, next_retry_at,
	payload, error_details, result_payload, claimed_by, claimed_at, created_at, updated_at`

// PostgresTaskStore implements task.Store on the registration_tasks table.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements task.Store interface
var _ task.Store = (*PostgresTaskStore)(nil)

// CreateIfAbsent implements task.Store.CreateIfAbsent.
func (s *PostgresTaskStore) CreateIfAbsent(ctx context.Context, t *task.RegistrationTask) (bool, error) {
	payload := t.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO registration_tasks
			(id, user_id, task_type, status, retry_count, priority, next_retry_at, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, task_type) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.UserID,
		string(t.Type),
		string(t.Status),
		t.RetryCount,
		t.Priority,
		t.NextRetryAt,
		[]byte(payload),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to insert registration task",
			slog.String("error", err.Error()),
			slog.String("user_id", t.UserID.String()),
			slog.String("task_type", string(t.Type)))
		return false, MapError(err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListDue implements task.Store.ListDue.
func (s *PostgresTaskStore) ListDue(ctx context.Context, now time.Time, maxRetries int, limit int) ([]*task.RegistrationTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM registration_tasks
		WHERE next_retry_at <= $1
		  AND (status = 'pending'
		    OR (status = 'failed' AND retry_count <= $2 AND COALESCE(error_details->>'kind', '') <> 'permanent'))
		ORDER BY priority DESC, next_retry_at ASC
		LIMIT $3
	`
	return s.queryTasks(ctx, "list due tasks", query, now, maxRetries, limit)
}

// Claim implements task.Store.Claim. The update only matches while the task
// is still in the expected status, so concurrent claimers cannot both win.
func (s *PostgresTaskStore) Claim(
	ctx context.Context,
	id uuid.UUID,
	expected task.TaskStatus,
	claimedBy string,
	now time.Time,
) (*task.RegistrationTask, error) {
	if !task.CanTransition(expected, task.TaskStatusProcessing) {
		return nil, fmt.Errorf("%w: cannot claim a %s task", task.ErrClaimLost, expected)
	}

	query := `
		UPDATE registration_tasks
		SET status = 'processing', claimed_by = $3, claimed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + taskColumns

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id, string(expected), claimedBy, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrClaimLost
		}
		s.logger.ErrorContext(ctx, "failed to claim registration task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return t, nil
}

// Complete implements task.Store.Complete.
func (s *PostgresTaskStore) Complete(ctx context.Context, id uuid.UUID, claimedBy string, result json.RawMessage, now time.Time) error {
	var resultArg any
	if len(result) > 0 {
		resultArg = []byte(result)
	}
	query := `
		UPDATE registration_tasks
		SET status = 'completed', result_payload = $3, error_details = NULL,
		    claimed_by = NULL, claimed_at = NULL, updated_at = $4
		WHERE id = $1 AND status = 'processing' AND claimed_by = $2
	`
	return s.execClaimed(ctx, "complete", id, query, id, claimedBy, resultArg, now)
}

// Reschedule implements task.Store.Reschedule.
func (s *PostgresTaskStore) Reschedule(
	ctx context.Context,
	id uuid.UUID,
	claimedBy string,
	retryCount int,
	nextRetryAt time.Time,
	details task.ErrorDetails,
	now time.Time,
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode error details: %w", err)
	}
	query := `
		UPDATE registration_tasks
		SET status = 'pending', retry_count = $3, next_retry_at = $4, error_details = $5,
		    claimed_by = NULL, claimed_at = NULL, updated_at = $6
		WHERE id = $1 AND status = 'processing' AND claimed_by = $2
	`
	return s.execClaimed(ctx, "reschedule", id, query, id, claimedBy, retryCount, nextRetryAt, detailsJSON, now)
}

// Fail implements task.Store.Fail.
func (s *PostgresTaskStore) Fail(
	ctx context.Context,
	id uuid.UUID,
	claimedBy string,
	retryCount int,
	details task.ErrorDetails,
	now time.Time,
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode error details: %w", err)
	}
	query := `
		UPDATE registration_tasks
		SET status = 'failed', retry_count = $3, error_details = $4,
		    claimed_by = NULL, claimed_at = NULL, updated_at = $5
		WHERE id = $1 AND status = 'processing' AND claimed_by = $2
	`
	return s.execClaimed(ctx, "fail", id, query, id, claimedBy, retryCount, detailsJSON, now)
}

func (s *PostgresTaskStore) execClaimed(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update registration task",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		s.logger.WarnContext(ctx, "registration task claim lost",
			slog.String("operation", op),
			slog.String("task_id", id.String()))
		return task.ErrClaimLost
	}
	return nil
}

// ListByUser implements task.Store.ListByUser.
func (s *PostgresTaskStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*task.RegistrationTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM registration_tasks
		WHERE user_id = $1
		ORDER BY priority DESC, next_retry_at ASC
	`
	return s.queryTasks(ctx, "list user tasks", query, userID)
}

// ResetFailed implements task.Store.ResetFailed.
func (s *PostgresTaskStore) ResetFailed(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	query := `
		UPDATE registration_tasks
		SET status = 'pending', retry_count = 0, error_details = NULL,
		    next_retry_at = $2, updated_at = $2
		WHERE user_id = $1 AND status = 'failed'
	`
	result, err := s.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reset failed tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, MapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListStale implements task.Store.ListStale.
func (s *PostgresTaskStore) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*task.RegistrationTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM registration_tasks
		WHERE status = 'processing' AND claimed_at < $1
		ORDER BY priority DESC, next_retry_at ASC
		LIMIT $2
	`
	return s.queryTasks(ctx, "list stale tasks", query, claimedBefore, limit)
}

// Stats implements task.Store.Stats.
func (s *PostgresTaskStore) Stats(ctx context.Context) (task.Stats, error) {
	query := `
		SELECT task_type, status, COUNT(*)
		FROM registration_tasks
		GROUP BY task_type, status
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query task stats", slog.String("error", err.Error()))
		return task.Stats{}, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	stats := task.NewStats()
	for rows.Next() {
		var taskType, status string
		var n int
		if err := rows.Scan(&taskType, &status, &n); err != nil {
			return task.Stats{}, fmt.Errorf("failed to scan task stats row: %w", err)
		}
		stats.Add(task.TaskType(taskType), task.TaskStatus(status), n)
	}
	if err := rows.Err(); err != nil {
		return task.Stats{}, fmt.Errorf("error iterating task stats rows: %w", err)
	}
	return stats, nil
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, op string, query string, args ...any) ([]*task.RegistrationTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query registration tasks",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.RegistrationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to scan registration task row",
				slog.String("operation", op),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan registration task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration task rows: %w", err)
	}
	return tasks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.RegistrationTask, error) {
	var (
		t            task.RegistrationTask
		taskType     string
		status       string
		payload      []byte
		errorDetails []byte
		result       []byte
		claimedBy    sql.NullString
		claimedAt    sql.NullTime
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&taskType,
		&status,
		&t.RetryCount,
		&t.Priority,
		&t.NextRetryAt,
		&payload,
		&errorDetails,
		&result,
		&claimedBy,
		&claimedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Type = task.TaskType(taskType)
	t.Status = task.TaskStatus(status)
	if len(payload) > 0 {
		t.Payload = json.RawMessage(payload)
	}
	if len(result) > 0 {
		t.ResultPayload = json.RawMessage(result)
	}
	if len(errorDetails) > 0 {
		var d task.ErrorDetails
		if err := json.Unmarshal(errorDetails, &d); err != nil {
			return nil, fmt.Errorf("failed to decode error details: %w", err)
		}
		t.ErrorDetails = &d
	}
	if claimedBy.Valid {
		t.ClaimedBy = claimedBy.String
	}
	if claimedAt.Valid {
		at := claimedAt.Time
		t.ClaimedAt = &at
	}
	return &t, nil
}
