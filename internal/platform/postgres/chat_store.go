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

// PostgresChatStore implements store.ChatStore on the chat_rooms and
// chat_room_members tables.
type PostgresChatStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresChatStore creates a new PostgresChatStore.
func NewPostgresChatStore(db store.DBTX, logger *slog.Logger) *PostgresChatStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresChatStore{
		db:     db,
		logger: logger.With(slog.String("component", "chat_store")),
	}
}

var _ store.ChatStore = (*PostgresChatStore)(nil)

// FindRoom implements store.ChatStore.FindRoom.
func (s *PostgresChatStore) FindRoom(ctx context.Context, patientID uuid.UUID, kind domain.ChatRoomKind) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	var k string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, kind, name, created_at
		FROM chat_rooms
		WHERE patient_id = $1 AND kind = $2
	`, patientID, string(kind)).Scan(&room.ID, &room.PatientID, &k, &room.Name, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrChatRoomNotFound
		}
		s.logger.ErrorContext(ctx, "failed to find chat room",
			slog.String("error", err.Error()),
			slog.String("patient_id", patientID.String()))
		return nil, MapError(err)
	}
	room.Kind = domain.ChatRoomKind(k)

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, role
		FROM chat_room_members
		WHERE room_id = $1
		ORDER BY role
	`, room.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load chat room members",
			slog.String("error", err.Error()),
			slog.String("room_id", room.ID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var userID uuid.NullUUID
		var role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan chat member row: %w", err)
		}
		m := domain.ChatMember{Role: domain.ChatMemberRole(role)}
		if userID.Valid {
			m.UserID = userID.UUID
		}
		room.Members = append(room.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat member rows: %w", err)
	}
	return &room, nil
}

// CreateRoom implements store.ChatStore.CreateRoom. The room and its
// members are written in one transaction.
func (s *PostgresChatStore) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	return store.InTransaction(ctx, s.db, func(ctx context.Context, q store.DBTX) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO chat_rooms (id, patient_id, kind, name, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, room.ID, room.PatientID, string(room.Kind), room.Name, room.CreatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: chat room %s for patient %s", store.ErrDuplicate, room.Kind, room.PatientID)
			}
			s.logger.ErrorContext(ctx, "failed to create chat room",
				slog.String("error", err.Error()),
				slog.String("patient_id", room.PatientID.String()))
			return MapError(err)
		}

		for _, m := range room.Members {
			userID := uuid.NullUUID{UUID: m.UserID, Valid: m.UserID != uuid.Nil}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO chat_room_members (room_id, user_id, role)
				VALUES ($1, $2, $3)
			`, room.ID, userID, string(m.Role)); err != nil {
				s.logger.ErrorContext(ctx, "failed to add chat room member",
					slog.String("error", err.Error()),
					slog.String("room_id", room.ID.String()),
					slog.String("role", string(m.Role)))
				return MapError(err)
			}
		}
		return nil
	})
}
