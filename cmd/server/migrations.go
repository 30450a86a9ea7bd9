package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/careloop/careloop-api/internal/platform/postgres"
)

// handleMigrations runs a goose command against the embedded migrations.
// It's called from run() when the -migrate flag is set.
func handleMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	if !slices.Contains(postgres.MigrationCommands, command) {
		return fmt.Errorf("unknown migration command %q (expected one of %v)", command, postgres.MigrationCommands)
	}
	logger.Info("executing migrations", "command", command)
	return postgres.Migrate(ctx, db, command, logger)
}
