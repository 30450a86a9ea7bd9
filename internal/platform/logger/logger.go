package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/careloop/careloop-api/internal/ciutil"
)

// LoggerConfig holds the settings needed to build the application logger.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string
	// Format is "json" (default) or "text".
	Format string
	// AddSource adds file and line information to each record.
	AddSource bool
	// Output defaults to os.Stdout.
	Output io.Writer
}

type loggerKey struct{}

// ParseLevel maps a configured level name to a slog.Level.
// The second return value is false if the name was not recognized.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured logger with the
// appropriate log level, sets it as the default logger and returns it.
func Setup(cfg LoggerConfig) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var base slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		base = slog.NewTextHandler(out, opts)
	} else {
		base = slog.NewJSONHandler(out, opts)
	}

	if attrs := ciutil.Attrs(); len(attrs) > 0 {
		base = base.WithAttrs(attrs)
	}

	logger := slog.New(NewContextHandler(base))

	// Set this logger as the default for the application
	slog.SetDefault(logger)

	return logger, nil
}

// WithLogger returns a copy of ctx that carries the given logger.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
