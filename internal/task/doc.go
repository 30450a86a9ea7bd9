// Package task implements the registration task pipeline: an at-least-once,
// pull-based queue of onboarding steps persisted in the task store.
//
// The Producer inserts one task per required onboarding step, the Processor
// claims and executes due tasks in priority order with explicit retry and
// backoff bookkeeping, and the Repairer gives operators escape hatches for
// stuck pipelines. The Scheduler is an optional in-process trigger for the
// Processor.
package task
