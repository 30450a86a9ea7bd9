package main

import (
	"fmt"
	"log/slog"

	"github.com/careloop/careloop-api/internal/config"
	"github.com/careloop/careloop-api/internal/platform/logger"
)

// setupAppLogger configures and initializes the application logger based on config settings.
// Returns the configured logger or an error if setup fails.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(logger.LoggerConfig{
		Level: cfg.Server.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"scheduler_enabled", cfg.Pipeline.SchedulerEnable)
	l.Debug("auth configuration", "jwt_secret_present", cfg.Auth.JWTSecret != "")
	return l, nil
}
