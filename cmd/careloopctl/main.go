// Command careloopctl is the operator CLI for the registration pipeline. It
// talks to the database directly and runs the same producer, processor and
// repair utilities as the function gateway.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/careloop/careloop-api/internal/config"
	"github.com/careloop/careloop-api/internal/pipeline"
	"github.com/careloop/careloop-api/internal/platform/logger"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/spf13/cobra"
)

var (
	configPath string
	output     string
	verbose    bool
	timeout    time.Duration
)

// runtime is what a command needs from the environment.
type runtime struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	components *pipeline.Components
}

func (rt *runtime) Close() error {
	if rt.db == nil {
		return nil
	}
	return rt.db.Close()
}

// openDatabase and openPipeline are replaced in tests.
var (
	openDatabase = defaultOpenDatabase
	openPipeline = defaultOpenPipeline
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "careloopctl",
	Short: "Operate the careloop registration pipeline",
	Long: `careloopctl runs registration pipeline operations against the database.

It uses the same configuration as the API server (CARELOOP_* environment
variables, .env and config.yaml) and the same services as the function
gateway, so a batch processed here is indistinguishable from one triggered
over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: ./config.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	tasksCmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	statsCmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	hashKeyCmd.Flags().IntVar(&hashCost, "cost", 0, "bcrypt cost (default: bcrypt.DefaultCost)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(retriggerCmd)
	rootCmd.AddCommand(fixUsersCmd)
	rootCmd.AddCommand(fixDoctorsCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Server.LogLevel
	if verbose {
		level = "debug"
	}
	return logger.Setup(logger.LoggerConfig{Level: level, Format: "text", Output: os.Stderr})
}

func defaultOpenDatabase(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	l, err := setupLogger(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &runtime{config: cfg, logger: l, db: db}, nil
}

func defaultOpenPipeline(ctx context.Context) (*runtime, error) {
	rt, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	rt.components, err = pipeline.New(ctx, rt.config, pipeline.PostgresStores(rt.db, rt.logger), pipeline.Options{
		Features: config.NewFeatureSource(configPath),
		WorkerID: fmt.Sprintf("careloopctl-%s-%d", host, os.Getpid()),
	}, rt.logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}
