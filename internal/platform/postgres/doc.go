// Package postgres provides PostgreSQL implementations of the store
// interfaces in internal/store and of task.Store. It owns the embedded goose
// migrations, maps driver errors to store errors, and expresses the
// pipeline's concurrency rules as conditional UPDATE statements.
package postgres
