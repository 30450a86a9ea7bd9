package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/store"
	"github.com/careloop/careloop-api/internal/task"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func taskRow(t *task.RegistrationTask) *sqlmock.Rows {
	var claimedBy, claimedAt any
	if t.ClaimedBy != "" {
		claimedBy = t.ClaimedBy
	}
	if t.ClaimedAt != nil {
		claimedAt = *t.ClaimedAt
	}
	var details any
	if t.ErrorDetails != nil {
		b, _ := json.Marshal(t.ErrorDetails)
		details = b
	}
	return sqlmock.NewRows([]string{
		"id", "user_id", "task_type", "status", "retry_count", "priority", "next_retry_at",
		"payload", "error_details", "result_payload", "claimed_by", "claimed_at", "created_at", "updated_at",
	}).AddRow(
		t.ID.String(), t.UserID.String(), string(t.Type), string(t.Status), t.RetryCount, t.Priority, t.NextRetryAt,
		[]byte(t.Payload), details, nil, claimedBy, claimedAt, t.CreatedAt, t.UpdatedAt,
	)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MapError(nil))
	assert.ErrorIs(t, MapError(sql.ErrNoRows), store.ErrNotFound)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: "23505", ConstraintName: "uq"}), store.ErrDuplicate)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: "23503"}), store.ErrInvalidEntity)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: "23514"}), store.ErrInvalidEntity)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: "23502"}), store.ErrInvalidEntity)

	other := errors.New("connection reset")
	assert.Equal(t, other, MapError(other))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(other))
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "$4, $5, $6", placeholders(4, 3))
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "", placeholders(1, 0))
}

func TestMaskDatabaseURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "postgres://app:****@db:5432/careloop", MaskDatabaseURL("postgres://app:secret@db:5432/careloop"))
	assert.Equal(t, "postgres://db/careloop", MaskDatabaseURL("postgres://db/careloop"))
}

func TestMigrationFiles(t *testing.T) {
	t.Parallel()
	files, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "00001_create_profiles.sql", files[0])
	assert.Contains(t, files, "00004_create_registration_tasks.sql")
}

func TestTaskStore_CreateIfAbsent(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, quietLogger())

	tk, err := task.NewRegistrationTask(uuid.New(), task.TaskTypeAssignCareTeam, nil, testNow)
	require.NoError(t, err)

	insert := regexp.QuoteMeta("ON CONFLICT (user_id, task_type) DO NOTHING")
	mock.ExpectExec(insert).
		WithArgs(tk.ID, tk.UserID, "assign_care_team", "pending", 0, 30, testNow, []byte(`{}`), testNow, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.CreateIfAbsent(context.Background(), tk)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateIfAbsent(context.Background(), tk)
	require.NoError(t, err)
	assert.False(t, created, "conflicting insert reports existing")
}

func TestTaskStore_ListDue(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, quietLogger())

	tk, err := task.NewRegistrationTask(uuid.New(), task.TaskTypeCreateChatRoom, nil, testNow)
	require.NoError(t, err)
	tk.Status = task.TaskStatusFailed
	tk.RetryCount = 2
	tk.ErrorDetails = &task.ErrorDetails{Message: "timeout", Kind: task.ErrorKindTransient, Attempt: 2}

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY priority DESC, next_retry_at ASC")).
		WithArgs(testNow, 5, 50).
		WillReturnRows(taskRow(tk))

	due, err := s.ListDue(context.Background(), testNow, 5, 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, tk.ID, due[0].ID)
	assert.Equal(t, task.TaskStatusFailed, due[0].Status)
	require.NotNil(t, due[0].ErrorDetails)
	assert.Equal(t, task.ErrorKindTransient, due[0].ErrorDetails.Kind)
	assert.Nil(t, due[0].ClaimedAt)
}

func TestTaskStore_ListDue_SkipsPermanentFailures(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, quietLogger())

	mock.ExpectQuery(regexp.QuoteMeta(
		"status = 'failed' AND retry_count <= $2 AND COALESCE(error_details->>'kind', '') <> 'permanent'")).
		WithArgs(testNow, 5, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	due, err := s.ListDue(context.Background(), testNow, 5, 50)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_ListDue_QueryError(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, quietLogger())

	mock.ExpectQuery("FROM registration_tasks").WillReturnError(errors.New("connection refused"))

	_, err := s.ListDue(context.Background(), testNow, 5, 50)
	assert.Error(t, err)
}

func TestTaskStore_Claim(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, quietLogger())

	tk, err := task.NewRegistrationTask(uuid.New(), task.TaskTypeAssignCareTeam, nil, testNow)
	require.NoError(t, err)
	claimed := tk.Clone()
	claimed.Status = task.TaskStatusProcessing
	claimed.ClaimedBy = "worker-1"
	at := testNow
	claimed.ClaimedAt = &at

	claim := regexp.QuoteMeta("WHERE id = $1 AND status = $2")
	mock.ExpectQuery(claim).
		WithArgs(tk.ID, "pending", "worker-1", testNow).
		WillReturnRows(taskRow(claimed))
	mock.ExpectQuery(claim).
		WithArgs(tk.ID, "pending", "worker-2", testNow).
		WillReturnError(sql.ErrNoRows)

	got, err := s.Claim(context.Background(), tk.ID, task.TaskStatusPending, "worker-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusProcessing, got.Status)
	assert.Equal(t, "worker-1", got.ClaimedBy)
	require.NotNil(t, got.ClaimedAt)

	_, err = s.Claim(context.Background(), tk.ID, task.TaskStatusPending, "worker-2", testNow)
	assert.ErrorIs(t, err, task.ErrClaimLost)

	_, err = s.Claim(context.Background(), tk.ID, task.TaskStatusCompleted, "worker-3", testNow)
	assert.ErrorIs(t, err, task.ErrClaimLost, "completed tasks are never claimable")
}

func TestTaskStore_ConditionalUpdates(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	details := task.ErrorDetails{Message: "smtp down", Kind: task.ErrorKindTransient, Attempt: 1}

	tests := []struct {
		name string
		run  func(s *PostgresTaskStore) error
		sql  string
	}{
		{
			name: "complete",
			run: func(s *PostgresTaskStore) error {
				return s.Complete(context.Background(), id, "w", json.RawMessage(`{"ok":true}`), testNow)
			},
			sql: "SET status = 'completed'",
		},
		{
			name: "reschedule",
			run: func(s *PostgresTaskStore) error {
				return s.Reschedule(context.Background(), id, "w", 1, testNow.Add(time.Minute), details, testNow)
			},
			sql: "SET status = 'pending'",
		},
		{
			name: "fail",
			run: func(s *PostgresTaskStore) error {
				return s.Fail(context.Background(), id, "w", 6, details, testNow)
			},
			sql: "SET status = 'failed'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			s := NewPostgresTaskStore(db, quietLogger())

			mock.ExpectExec(regexp.QuoteMeta(tc.sql)).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(regexp.QuoteMeta(tc.sql)).WillReturnResult(sqlmock.NewResult(0, 0))

			require.NoError(t, tc.run(s))
			assert.ErrorIs(t, tc.run(s), task.ErrClaimLost, "no matching claimed row")
		})
	}
}

func TestTaskStore_ResetFailed(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, quietLogger())
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $1 AND status = 'failed'")).
		WithArgs(userID, testNow).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.ResetFailed(context.Background(), userID, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTaskStore_Stats(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, quietLogger())

	mock.ExpectQuery("GROUP BY task_type, status").WillReturnRows(
		sqlmock.NewRows([]string{"task_type", "status", "count"}).
			AddRow("assign_care_team", "completed", 4).
			AddRow("create_chat_room", "failed", 1).
			AddRow("create_chat_room", "pending", 3),
	)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Total)
	assert.Equal(t, 4, stats.ByStatus[task.TaskStatusCompleted])
	assert.Equal(t, 1, stats.ByType[task.TaskTypeCreateChatRoom][task.TaskStatusFailed])
}

func profileRow(p *domain.Profile) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "role", "full_name", "email", "phone", "whatsapp_opt_in",
		"registration_status", "payment_status", "created_at", "updated_at",
	}).AddRow(p.ID.String(), string(p.Role), p.FullName, p.Email, nil, p.WhatsAppOptIn,
		string(p.RegistrationStatus), string(p.PaymentStatus), testNow, testNow)
}

func TestProfileStore_GetByID(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProfileStore(db, quietLogger())

	p := &domain.Profile{
		ID:                 uuid.New(),
		Role:               domain.RolePatient,
		FullName:           "Asha Rao",
		Email:              "asha@example.com",
		RegistrationStatus: domain.RegistrationPaymentComplete,
		PaymentStatus:      domain.PaymentCompleted,
	}
	mock.ExpectQuery("FROM profiles WHERE id").WithArgs(p.ID).WillReturnRows(profileRow(p))
	mock.ExpectQuery("FROM profiles WHERE id").WillReturnError(sql.ErrNoRows)

	got, err := s.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RolePatient, got.Role)
	assert.Equal(t, "asha@example.com", got.Email)
	assert.Empty(t, got.Phone)
	assert.Equal(t, domain.PaymentCompleted, got.PaymentStatus)

	_, err = s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrProfileNotFound)
}

func TestProfileStore_AdvanceRegistrationStatus(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProfileStore(db, quietLogger())
	s.now = func() time.Time { return testNow }
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("registration_status IN ($4, $5)")).
		WithArgs(id, "care_team_assigned", testNow, "payment_pending", "payment_complete").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("registration_status IN ($4, $5)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := s.AdvanceRegistrationStatus(context.Background(), id, domain.RegistrationCareTeamAssigned)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AdvanceRegistrationStatus(context.Background(), id, domain.RegistrationCareTeamAssigned)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.AdvanceRegistrationStatus(context.Background(), id, domain.RegistrationPaymentPending)
	require.NoError(t, err)
	assert.False(t, changed, "the first stage has no predecessors")

	_, err = s.AdvanceRegistrationStatus(context.Background(), id, domain.RegistrationStatus("bogus"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProfileStore_SetPaymentStatus_NotFound(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProfileStore(db, quietLogger())

	mock.ExpectExec("UPDATE profiles SET payment_status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetPaymentStatus(context.Background(), uuid.New(), domain.PaymentCompleted)
	assert.ErrorIs(t, err, store.ErrProfileNotFound)
}

func TestCareTeamStore_ReplaceDefault(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresCareTeamStore(db, quietLogger())

	team, err := domain.NewDefaultCareTeam(uuid.New(), uuid.New())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE default_care_teams SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO default_care_teams").
		WithArgs(team.ID, team.DefaultDoctorID, team.DefaultNutritionistID, team.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.ReplaceDefault(context.Background(), team))
	assert.True(t, team.IsActive)
}

func TestCareTeamStore_ReplaceDefault_RollsBack(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresCareTeamStore(db, quietLogger())

	team, err := domain.NewDefaultCareTeam(uuid.New(), uuid.New())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE default_care_teams").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO default_care_teams").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "default_care_teams_default_doctor_id_fkey"})
	mock.ExpectRollback()

	err = s.ReplaceDefault(context.Background(), team)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestCareTeamStore_GetActiveDefault_None(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresCareTeamStore(db, quietLogger())

	mock.ExpectQuery("FROM default_care_teams").WillReturnError(sql.ErrNoRows)

	_, err := s.GetActiveDefault(context.Background())
	assert.ErrorIs(t, err, store.ErrNoActiveDefaultCareTeam)
}

func TestChatStore_CreateRoom_Duplicate(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresChatStore(db, quietLogger())

	patient := &domain.Profile{ID: uuid.New(), Role: domain.RolePatient, FullName: "Asha"}
	room, err := domain.NewCareTeamRoom(patient, &domain.CareTeam{
		PatientID: patient.ID, DoctorID: uuid.New(), NutritionistID: uuid.New(), AIAssistantEnabled: true,
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat_rooms").WillReturnResult(sqlmock.NewResult(0, 1))
	for range room.Members {
		mock.ExpectExec("INSERT INTO chat_room_members").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat_rooms").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	require.NoError(t, s.CreateRoom(context.Background(), room))
	assert.ErrorIs(t, s.CreateRoom(context.Background(), room), store.ErrDuplicate)
}

func TestProgressStore_MarkStep(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	s := NewPostgresProgressStore(db, quietLogger())
	s.now = func() time.Time { return testNow }
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SET chat_room_created = TRUE")).
		WithArgs(userID, testNow).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "payment_status", "care_team_assigned", "chat_room_created",
			"welcome_notification_sent", "registration_completed", "updated_at",
		}).AddRow(userID.String(), "completed", true, true, false, false, testNow))

	p, err := s.MarkStep(context.Background(), userID, domain.StepChatRoomCreated)
	require.NoError(t, err)
	assert.True(t, p.ChatRoomCreated)
	assert.True(t, p.CareTeamAssigned)
	assert.False(t, p.Complete())

	_, err = s.MarkStep(context.Background(), userID, domain.ProgressStep("payment_received"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
