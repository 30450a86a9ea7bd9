// Package main implements the careloop API server: the registration task
// pipeline's function gateway, the REST API and the optional in-process
// scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/careloop/careloop-api/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a config.yaml (defaults to ./config.yaml when present)")
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *migrateCmd); err != nil {
		log.Printf("careloop-api: %v", err)
		stop()
		os.Exit(1)
	}
}

// run loads configuration, sets up logging and the database, then either
// runs migrations or serves until ctx is cancelled.
func run(ctx context.Context, configPath, migrateCmd string) error {
	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connection", "error", err)
		}
	}()

	if migrateCmd != "" {
		return handleMigrations(ctx, db, migrateCmd, logger)
	}

	app, err := newApplication(ctx, cfg, configPath, logger, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	slog.Info("careloop API starting", "port", cfg.Server.Port)
	return app.Run(ctx)
}

// loadAppConfig loads configuration from the environment and the optional
// config file.
func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
