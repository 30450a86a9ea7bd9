package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// The transaction is committed if the function returns nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction executes fn within a new transaction on db.
// Panics inside fn roll the transaction back and are re-raised.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", rbErr.Error()),
					slog.Any("panic", p))
			}
			// ALLOW-PANIC: propagating caught panic from transaction
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}
	return nil
}

// InTransaction runs fn inside a transaction on db. When db is already a
// transaction, fn joins it instead of opening a nested one.
func InTransaction(ctx context.Context, db DBTX, fn func(ctx context.Context, q DBTX) error) error {
	switch conn := db.(type) {
	case *sql.Tx:
		return fn(ctx, conn)
	case *sql.DB:
		return RunInTransaction(ctx, conn, func(ctx context.Context, tx *sql.Tx) error {
			return fn(ctx, tx)
		})
	default:
		// Test doubles and other DBTX implementations run without a transaction.
		return fn(ctx, db)
	}
}
