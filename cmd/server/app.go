package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/api"
	"github.com/careloop/careloop-api/internal/config"
	"github.com/careloop/careloop-api/internal/pipeline"
	"github.com/careloop/careloop-api/internal/service/auth"
	"github.com/careloop/careloop-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil in tests; health checks then report the database as unchecked.
	db api.Pinger

	components *pipeline.Components
	scheduler  *task.Scheduler

	jwtService auth.JWTService
	triggerKey auth.TriggerKeyVerifier
}

// newApplication creates the application over the Postgres stores.
func newApplication(ctx context.Context, cfg *config.Config, configPath string, logger *slog.Logger, db *sql.DB) (*application, error) {
	return newApplicationWith(ctx, cfg, logger, db, pipeline.PostgresStores(db, logger), pipeline.Options{
		Features: config.NewFeatureSource(configPath),
	})
}

// newApplicationWith creates the application over the given stores. db may be nil.
func newApplicationWith(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	stores pipeline.Stores,
	opts pipeline.Options,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}
	if db != nil {
		app.db = db
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.triggerKey, err = auth.NewBcryptVerifier(cfg.Auth.TriggerKeyHash)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trigger key verifier: %w", err)
	}

	app.components, err = pipeline.New(ctx, cfg, stores, opts, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Pipeline.SchedulerEnable {
		app.scheduler, err = app.components.NewScheduler(cfg.Pipeline, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
	}

	logger.Info("application initialized successfully",
		"scheduler_enabled", app.scheduler != nil)
	return app, nil
}

// Run serves HTTP, and the scheduler when enabled, until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.serve(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
