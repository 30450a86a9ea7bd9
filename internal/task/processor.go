package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/careloop/careloop-api/internal/redact"
	"github.com/google/uuid"
)

// ProgressTracker records the effect of a completed task on the user's
// registration progress.
type ProgressTracker interface {
	StepCompleted(ctx context.Context, userID uuid.UUID, taskType TaskType) error
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	// BatchSize bounds how many due tasks one ProcessBatch call handles.
	BatchSize int

	// Policy decides retry ceilings and backoff.
	Policy RetryPolicy

	// TaskTimeout bounds a single task execution. Zero means no limit beyond
	// the caller's context.
	TaskTimeout time.Duration

	// WorkerID is written to claimed_by. Defaults to hostname and pid.
	WorkerID string
}

// DefaultProcessorConfig returns a ProcessorConfig with reasonable defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		BatchSize:   50,
		Policy:      DefaultRetryPolicy(),
		TaskTimeout: 30 * time.Second,
	}
}

// Summary reports what one processor batch did.
type Summary struct {
	Processed   int `json:"processed"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Rescheduled int `json:"rescheduled"`
	Skipped     int `json:"skipped"`
}

func (s *Summary) record(o Outcome) {
	switch o {
	case OutcomeSucceeded:
		s.Processed++
		s.Succeeded++
	case OutcomeRescheduled:
		s.Processed++
		s.Rescheduled++
	case OutcomeFailed:
		s.Processed++
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Processor claims and executes due registration tasks.
type Processor struct {
	store    Store
	registry *Registry
	tracker  ProgressTracker
	observer Observer
	config   ProcessorConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(
	store Store,
	registry *Registry,
	tracker ProgressTracker,
	config ProcessorConfig,
	logger *slog.Logger,
) (*Processor, error) {
	if store == nil {
		return nil, fmt.Errorf("task store cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("executor registry cannot be nil")
	}
	if tracker == nil {
		return nil, fmt.Errorf("progress tracker cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if err := config.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if config.WorkerID == "" {
		config.WorkerID = defaultWorkerID()
	}

	return &Processor{
		store:    store,
		registry: registry,
		tracker:  tracker,
		observer: NopObserver{},
		config:   config,
		logger:   logger.With("component", "task_processor", "worker_id", config.WorkerID),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// SetObserver replaces the metrics observer.
func (p *Processor) SetObserver(o Observer) {
	if o != nil {
		p.observer = o
	}
}

// Policy returns the retry policy in use.
func (p *Processor) Policy() RetryPolicy {
	return p.config.Policy
}

// ProcessBatch handles the next batch of due tasks sequentially, in priority
// order. A failure to load the batch is returned as an error; failures of
// individual tasks are recorded on the task and counted in the summary.
func (p *Processor) ProcessBatch(ctx context.Context) (Summary, error) {
	start := time.Now()
	due, err := p.store.ListDue(ctx, p.now(), p.config.Policy.MaxRetries, p.config.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load due tasks: %w", err)
	}
	return p.run(ctx, p.logger, due, start)
}

// ProcessUser handles the due tasks of a single user, in priority order,
// regardless of what other users have queued.
func (p *Processor) ProcessUser(ctx context.Context, userID uuid.UUID) (Summary, error) {
	start := time.Now()
	tasks, err := p.store.ListByUser(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load user tasks: %w", err)
	}

	now := p.now()
	due := make([]*RegistrationTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Due(now, p.config.Policy) {
			due = append(due, t)
		}
	}
	sortByPriority(due)
	return p.run(ctx, p.logger.With("user_id", userID), due, start)
}

func (p *Processor) run(ctx context.Context, log *slog.Logger, due []*RegistrationTask, start time.Time) (Summary, error) {
	var summary Summary
	for _, t := range due {
		if err := ctx.Err(); err != nil {
			log.WarnContext(ctx, "batch interrupted", "remaining", len(due)-summary.Processed-summary.Skipped)
			return summary, err
		}
		summary.record(p.process(ctx, t))
	}

	p.observer.BatchFinished(summary, time.Since(start))
	log.InfoContext(ctx, "processed registration task batch",
		"due", len(due),
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"rescheduled", summary.Rescheduled,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration_ms", time.Since(start).Milliseconds())
	return summary, nil
}

// process claims and executes a single task and records the outcome.
func (p *Processor) process(ctx context.Context, t *RegistrationTask) Outcome {
	start := time.Now()
	log := p.logger.With(
		"task_id", t.ID,
		"task_type", t.Type,
		"user_id", t.UserID,
		"retry_count", t.RetryCount,
	)

	claimed, err := p.store.Claim(ctx, t.ID, t.Status, p.config.WorkerID, p.now())
	if err != nil {
		if errors.Is(err, ErrClaimLost) {
			log.DebugContext(ctx, "task claimed elsewhere, skipping")
		} else {
			log.ErrorContext(ctx, "failed to claim task", "error", redact.Error(err))
		}
		p.observer.TaskFinished(t.Type, OutcomeSkipped, "", time.Since(start))
		return OutcomeSkipped
	}

	result, execErr := p.execute(ctx, claimed)
	if execErr == nil {
		execErr = p.tracker.StepCompleted(ctx, claimed.UserID, claimed.Type)
		if execErr != nil {
			execErr = fmt.Errorf("failed to record progress: %w", execErr)
		}
	}

	if execErr == nil {
		outcome := OutcomeSucceeded
		if err := p.store.Complete(ctx, claimed.ID, p.config.WorkerID, result, p.now()); err != nil {
			// The side effect happened; a stale claim will be retried and the
			// executor is idempotent.
			log.ErrorContext(ctx, "failed to mark task completed", "error", redact.Error(err))
			outcome = OutcomeSkipped
		} else {
			log.InfoContext(ctx, "task completed")
		}
		p.observer.TaskFinished(claimed.Type, outcome, "", time.Since(start))
		return outcome
	}

	outcome, kind := p.recordFailure(ctx, log, claimed, execErr)
	p.observer.TaskFinished(claimed.Type, outcome, kind, time.Since(start))
	return outcome
}

func (p *Processor) execute(ctx context.Context, t *RegistrationTask) (result json.RawMessage, err error) {
	executor, err := p.registry.Lookup(t.Type)
	if err != nil {
		return nil, err
	}

	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()
	return executor.Execute(ctx, t)
}

// recordFailure moves a claimed task back to pending with backoff, or to
// failed when the error is permanent or retries are exhausted.
func (p *Processor) recordFailure(
	ctx context.Context,
	log *slog.Logger,
	t *RegistrationTask,
	cause error,
) (Outcome, ErrorKind) {
	now := p.now()
	retryCount := t.RetryCount + 1
	kind := Classify(cause)
	details := ErrorDetails{
		Message:    redact.Error(cause),
		Kind:       kind,
		TaskType:   t.Type,
		Attempt:    retryCount,
		OccurredAt: now,
	}
	log = log.With("error", details.Message, "error_kind", kind, "attempt", retryCount)

	if kind == ErrorKindConfiguration {
		log.ErrorContext(ctx, "task blocked on configuration, operator action required")
	}

	if kind == ErrorKindPermanent || p.config.Policy.Exhausted(retryCount) {
		if err := p.store.Fail(ctx, t.ID, p.config.WorkerID, retryCount, details, now); err != nil {
			log.ErrorContext(ctx, "failed to mark task failed", "store_error", redact.Error(err))
			return OutcomeSkipped, kind
		}
		log.WarnContext(ctx, "task failed terminally")
		return OutcomeFailed, kind
	}

	next := now.Add(p.config.Policy.NextDelay(retryCount))
	if err := p.store.Reschedule(ctx, t.ID, p.config.WorkerID, retryCount, next, details, now); err != nil {
		log.ErrorContext(ctx, "failed to reschedule task", "store_error", redact.Error(err))
		return OutcomeSkipped, kind
	}
	log.WarnContext(ctx, "task attempt failed, rescheduled", "next_retry_at", next)
	return OutcomeRescheduled, kind
}

// RecoverStale returns tasks whose processing claim is older than ttl to the
// retry path. The expired attempt counts as a failed attempt. Returns the
// number of tasks recovered.
func (p *Processor) RecoverStale(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("claim ttl must be positive, got %s", ttl)
	}
	stale, err := p.store.ListStale(ctx, p.now().Add(-ttl), p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load stale tasks: %w", err)
	}

	recovered := 0
	for _, t := range stale {
		log := p.logger.With("task_id", t.ID, "task_type", t.Type, "claimed_by", t.ClaimedBy)
		retryCount := t.RetryCount + 1
		now := p.now()
		details := ErrorDetails{
			Message:    fmt.Sprintf("claim by %s expired after %s", t.ClaimedBy, ttl),
			Kind:       ErrorKindTransient,
			TaskType:   t.Type,
			Attempt:    retryCount,
			OccurredAt: now,
		}

		if p.config.Policy.Exhausted(retryCount) {
			err = p.store.Fail(ctx, t.ID, t.ClaimedBy, retryCount, details, now)
		} else {
			err = p.store.Reschedule(ctx, t.ID, t.ClaimedBy, retryCount, now, details, now)
		}
		if err != nil {
			if !errors.Is(err, ErrClaimLost) {
				log.ErrorContext(ctx, "failed to recover stale task", "error", redact.Error(err))
			}
			continue
		}
		recovered++
		log.WarnContext(ctx, "recovered stale task claim", "retry_count", retryCount)
	}

	if recovered > 0 {
		p.observer.StaleRecovered(recovered)
	}
	return recovered, nil
}

// sortByPriority orders tasks the way the due set is ordered: priority
// descending, then oldest next_retry_at first.
func sortByPriority(tasks []*RegistrationTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		return tasks[i].NextRetryAt.Before(tasks[j].NextRetryAt)
	})
}
