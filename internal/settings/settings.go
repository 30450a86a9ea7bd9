// Package settings holds the runtime feature flags of the service.
//
// Flags are loaded from a Source, validated, and published as an immutable
// snapshot. Reload re-reads the source and swaps the snapshot only when the
// new flags validate, so request handlers always see a consistent set.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
)

// Features are the product toggles exposed to clients.
type Features struct {
	ChatEnabled        bool `json:"chat_enabled" mapstructure:"chat_enabled" yaml:"chat_enabled"`
	VoiceEnabled       bool `json:"voice_enabled" mapstructure:"voice_enabled" yaml:"voice_enabled"`
	TranslationEnabled bool `json:"translation_enabled" mapstructure:"translation_enabled" yaml:"translation_enabled"`
	WhatsAppEnabled    bool `json:"whatsapp_enabled" mapstructure:"whatsapp_enabled" yaml:"whatsapp_enabled"`
	AIAssistantEnabled bool `json:"ai_assistant_enabled" mapstructure:"ai_assistant_enabled" yaml:"ai_assistant_enabled"`
}

// Validate checks flag dependencies: voice and translation are chat features.
func (f Features) Validate() error {
	if f.VoiceEnabled && !f.ChatEnabled {
		return fmt.Errorf("%w: voice requires chat to be enabled", domain.ErrValidation)
	}
	if f.TranslationEnabled && !f.ChatEnabled {
		return fmt.Errorf("%w: translation requires chat to be enabled", domain.ErrValidation)
	}
	if f.AIAssistantEnabled && !f.ChatEnabled {
		return fmt.Errorf("%w: the AI assistant requires chat to be enabled", domain.ErrValidation)
	}
	return nil
}

// Source loads the current feature flags.
type Source interface {
	LoadFeatures(ctx context.Context) (Features, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Features, error)

// LoadFeatures calls f.
func (f SourceFunc) LoadFeatures(ctx context.Context) (Features, error) {
	return f(ctx)
}

// StaticSource always returns the same flags.
func StaticSource(f Features) Source {
	return SourceFunc(func(context.Context) (Features, error) { return f, nil })
}

// Snapshot is a validated set of flags and when it was loaded.
type Snapshot struct {
	Features Features  `json:"features"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Service publishes the current feature flags.
type Service struct {
	source  Source
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// NewService loads and validates the initial flags.
func NewService(ctx context.Context, source Source, logger *slog.Logger) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("settings source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	s := &Service{source: source, logger: logger.With("component", "settings")}
	if _, err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the flags in effect.
func (s *Service) Current() Features {
	return s.current.Load().Features
}

// Snapshot returns the flags in effect and their load time.
func (s *Service) Snapshot() Snapshot {
	return *s.current.Load()
}

// Reload re-reads the source. Invalid flags are rejected and the previous
// snapshot stays in effect.
func (s *Service) Reload(ctx context.Context) (Snapshot, error) {
	f, err := s.source.LoadFeatures(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load feature flags: %w", err)
	}
	if err := f.Validate(); err != nil {
		s.logger.WarnContext(ctx, "rejected invalid feature flags", "error", err)
		return Snapshot{}, err
	}

	snap := &Snapshot{Features: f, LoadedAt: time.Now().UTC()}
	s.current.Store(snap)
	s.logger.InfoContext(ctx, "feature flags loaded",
		"chat_enabled", f.ChatEnabled,
		"voice_enabled", f.VoiceEnabled,
		"translation_enabled", f.TranslationEnabled,
		"whatsapp_enabled", f.WhatsAppEnabled,
		"ai_assistant_enabled", f.AIAssistantEnabled)
	return *snap, nil
}
