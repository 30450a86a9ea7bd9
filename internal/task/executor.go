package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Executor performs the side effect of one task type. Implementations must be
// idempotent: a task may be executed more than once when a previous attempt
// succeeded but could not be recorded.
type Executor interface {
	Execute(ctx context.Context, task *RegistrationTask) (json.RawMessage, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *RegistrationTask) (json.RawMessage, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task *RegistrationTask) (json.RawMessage, error) {
	return f(ctx, task)
}

// Registry maps task types to their executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[TaskType]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[TaskType]Executor)}
}

// Register binds an executor to a task type. Registering a type twice is an
// error.
func (r *Registry) Register(taskType TaskType, executor Executor) error {
	if !taskType.Valid() {
		return fmt.Errorf("cannot register executor for unknown task type %q", taskType)
	}
	if executor == nil {
		return fmt.Errorf("executor for %q cannot be nil", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[taskType]; exists {
		return fmt.Errorf("executor for %q already registered", taskType)
	}
	r.executors[taskType] = executor
	return nil
}

// Lookup returns the executor for a task type or ErrUnknownTaskType.
func (r *Registry) Lookup(taskType TaskType) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	return e, nil
}
