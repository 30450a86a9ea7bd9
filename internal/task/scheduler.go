package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/careloop/careloop-api/internal/redact"
)

// SchedulerConfig holds configuration for the in-process scheduler.
type SchedulerConfig struct {
	// Interval is how often a batch is processed.
	Interval time.Duration

	// ClaimTTL is how long a task may stay in processing before its claim is
	// considered abandoned.
	ClaimTTL time.Duration
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: time.Minute,
		ClaimTTL: 15 * time.Minute,
	}
}

// Scheduler periodically recovers stale claims and processes a batch. It is
// an optional trigger; the HTTP processor endpoint works without it.
type Scheduler struct {
	processor *Processor
	config    SchedulerConfig
	logger    *slog.Logger

	mu         sync.Mutex
	running    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(processor *Processor, config SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %s", config.Interval)
	}
	if config.ClaimTTL <= 0 {
		config.ClaimTTL = DefaultSchedulerConfig().ClaimTTL
	}
	return &Scheduler{
		processor: processor,
		config:    config,
		logger:    logger.With("component", "task_scheduler"),
	}, nil
}

// Start launches the scheduling loop. It returns an error if the scheduler
// is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started",
		"interval", s.config.Interval,
		"claim_ttl", s.config.ClaimTTL)
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancelFunc
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce recovers stale claims and processes one batch, logging failures.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	if _, err := s.processor.RecoverStale(ctx, s.config.ClaimTTL); err != nil {
		s.logger.ErrorContext(ctx, "failed to recover stale tasks", "error", redact.Error(err))
	}

	summary, err := s.processor.ProcessBatch(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "scheduled batch failed", "error", redact.Error(err))
	}
	return summary
}
