package task

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// clock is a settable time source shared by the components under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: baseTime} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTracker records completed steps.
type fakeTracker struct {
	mu    sync.Mutex
	steps map[uuid.UUID][]TaskType
	err   error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{steps: make(map[uuid.UUID][]TaskType)}
}

func (f *fakeTracker) StepCompleted(ctx context.Context, userID uuid.UUID, taskType TaskType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.steps[userID] = append(f.steps[userID], taskType)
	return nil
}

func (f *fakeTracker) Steps(userID uuid.UUID) []TaskType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TaskType(nil), f.steps[userID]...)
}

// orderLog records the order in which task types ran across executors.
type orderLog struct {
	mu    sync.Mutex
	types []TaskType
}

func (o *orderLog) add(tt TaskType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.types = append(o.types, tt)
}

func (o *orderLog) Types() []TaskType {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]TaskType(nil), o.types...)
}

// countingExecutor records every execution and returns err when set.
type countingExecutor struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
	order *orderLog
}

func (e *countingExecutor) Execute(ctx context.Context, t *RegistrationTask) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, t.ID)
	if e.order != nil {
		e.order.add(t.Type)
	}
	if e.err != nil {
		return nil, e.err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (e *countingExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *countingExecutor) SetErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func newPatient() *domain.Profile {
	return &domain.Profile{
		ID:                 uuid.New(),
		Role:               domain.RolePatient,
		FullName:           "Pat Example",
		Email:              "pat@example.com",
		RegistrationStatus: domain.RegistrationPaymentPending,
		PaymentStatus:      domain.PaymentCompleted,
		CreatedAt:          baseTime,
	}
}

// pipeline bundles a fully wired pipeline over in-memory stores.
type pipeline struct {
	clock     *clock
	store     *MockStore
	profiles  *mocks.MockProfileStore
	progress  *mocks.MockProgressStore
	tracker   *fakeTracker
	executors map[TaskType]*countingExecutor
	order     *orderLog
	producer  *Producer
	processor *Processor
	repairer  *Repairer
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: time.Minute, MaxDelay: 10 * time.Minute}
}

func newPipeline(t *testing.T, profiles ...*domain.Profile) *pipeline {
	t.Helper()
	p := &pipeline{
		clock:     newClock(),
		store:     NewMockStore(),
		profiles:  mocks.NewMockProfileStore(profiles...),
		progress:  mocks.NewMockProgressStore(),
		tracker:   newFakeTracker(),
		executors: make(map[TaskType]*countingExecutor),
		order:     &orderLog{},
	}

	registry := NewRegistry()
	for _, tt := range RequiredSteps() {
		e := &countingExecutor{order: p.order}
		p.executors[tt] = e
		require.NoError(t, registry.Register(tt, e))
	}

	var err error
	p.producer, err = NewProducer(p.store, p.profiles, p.progress, testLogger())
	require.NoError(t, err)
	p.producer.now = p.clock.Now

	cfg := DefaultProcessorConfig()
	cfg.Policy = testPolicy()
	cfg.WorkerID = "worker-test"
	p.processor, err = NewProcessor(p.store, registry, p.tracker, cfg, testLogger())
	require.NoError(t, err)
	p.processor.now = p.clock.Now

	p.repairer, err = NewRepairer(p.store, p.profiles, p.producer, p.processor, testLogger())
	require.NoError(t, err)
	p.repairer.now = p.clock.Now
	return p
}

func (p *pipeline) taskOf(t *testing.T, userID uuid.UUID, tt TaskType) *RegistrationTask {
	t.Helper()
	tasks, err := p.store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Type == tt {
			return task
		}
	}
	t.Fatalf("no %s task for user %s", tt, userID)
	return nil
}
