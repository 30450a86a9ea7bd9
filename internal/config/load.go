package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/careloop/careloop-api/internal/settings"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the service reads.
const EnvPrefix = "CARELOOP"

// bindings lists keys without defaults so AutomaticEnv can see them during
// Unmarshal.
var bindings = []string{
	"database.url",
	"auth.jwt_secret",
	"auth.trigger_key_hash",
	"notify.aws_region",
	"notify.email_from",
	"notify.sms_sender_id",
	"notify.whatsapp.base_url",
	"notify.whatsapp.account_sid",
	"notify.whatsapp.auth_token",
	"notify.whatsapp.from",
	"cors.allowed_origins",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory for config.yaml.
func LoadFile(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct validation plus cross-field checks.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := cfg.Features.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range bindings {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("pipeline.batch_size", 50)
	v.SetDefault("pipeline.max_retries", 5)
	v.SetDefault("pipeline.retry_base_delay", "30s")
	v.SetDefault("pipeline.retry_max_delay", "1h")
	v.SetDefault("pipeline.task_timeout", "30s")
	v.SetDefault("pipeline.scheduler_enabled", false)
	v.SetDefault("pipeline.scheduler_interval", "1m")
	v.SetDefault("pipeline.claim_ttl", "15m")

	v.SetDefault("notify.sms_enabled", false)

	v.SetDefault("features.chat_enabled", true)
	v.SetDefault("features.voice_enabled", false)
	v.SetDefault("features.translation_enabled", false)
	v.SetDefault("features.whatsapp_enabled", false)
	v.SetDefault("features.ai_assistant_enabled", true)
}

// FeatureSource re-reads the features section from the same sources Load
// uses, so feature flags can be reloaded without a restart.
type FeatureSource struct {
	path string
}

var _ settings.Source = (*FeatureSource)(nil)

// NewFeatureSource returns a settings.Source reading from path (or the
// default config.yaml search when empty) and the environment.
func NewFeatureSource(path string) *FeatureSource {
	return &FeatureSource{path: path}
}

// LoadFeatures implements settings.Source.
func (s *FeatureSource) LoadFeatures(ctx context.Context) (settings.Features, error) {
	if err := ctx.Err(); err != nil {
		return settings.Features{}, err
	}
	v, err := newViper(s.path)
	if err != nil {
		return settings.Features{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return settings.Features{}, fmt.Errorf("failed to unmarshal features: %w", err)
	}
	return cfg.Features, nil
}
