package config

import (
	"time"

	"github.com/careloop/careloop-api/internal/settings"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig      `mapstructure:"server" validate:"required"`
	Database DatabaseConfig    `mapstructure:"database" validate:"required"`
	Auth     AuthConfig        `mapstructure:"auth" validate:"required"`
	Pipeline PipelineConfig    `mapstructure:"pipeline" validate:"required"`
	Notify   NotifyConfig      `mapstructure:"notify"`
	CORS     CORSConfig        `mapstructure:"cors"`
	Features settings.Features `mapstructure:"features"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lte=43200"`
	// TriggerKeyHash is the bcrypt hash of the key schedulers and operators
	// present on the function gateway.
	TriggerKeyHash string `mapstructure:"trigger_key_hash" validate:"required"`
}

// PipelineConfig tunes the registration task processor.
type PipelineConfig struct {
	BatchSize       int           `mapstructure:"batch_size" validate:"required,gt=0,lte=1000"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0,lte=100"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay" validate:"required,gt=0"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay" validate:"required,gtefield=RetryBaseDelay"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout" validate:"required,gt=0"`
	SchedulerEnable bool          `mapstructure:"scheduler_enabled"`
	SchedulerEvery  time.Duration `mapstructure:"scheduler_interval" validate:"required_if=SchedulerEnable true"`
	ClaimTTL        time.Duration `mapstructure:"claim_ttl" validate:"required,gt=0"`
}

// NotifyConfig configures the notification providers. A provider left
// unconfigured makes its channel fail with a configuration error.
type NotifyConfig struct {
	AWSRegion   string         `mapstructure:"aws_region"`
	EmailFrom   string         `mapstructure:"email_from" validate:"omitempty,email"`
	SMSEnabled  bool           `mapstructure:"sms_enabled"`
	SMSSenderID string         `mapstructure:"sms_sender_id" validate:"omitempty,max=11"`
	WhatsApp    WhatsAppConfig `mapstructure:"whatsapp"`
}

// WhatsAppConfig configures the Twilio-compatible WhatsApp endpoint.
type WhatsAppConfig struct {
	BaseURL    string `mapstructure:"base_url" validate:"omitempty,url"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from" validate:"omitempty,e164"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}
