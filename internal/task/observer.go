package task

import "time"

// Outcome is the result of one task attempt.
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeRescheduled Outcome = "rescheduled"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
)

// Observer receives pipeline events for metrics.
type Observer interface {
	TasksProduced(created, existing int)
	TaskFinished(taskType TaskType, outcome Outcome, kind ErrorKind, duration time.Duration)
	BatchFinished(summary Summary, duration time.Duration)
	StaleRecovered(n int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) TasksProduced(int, int)                                   {}
func (NopObserver) TaskFinished(TaskType, Outcome, ErrorKind, time.Duration) {}
func (NopObserver) BatchFinished(Summary, time.Duration)                     {}
func (NopObserver) StaleRecovered(int)                                       {}
