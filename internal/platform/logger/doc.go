// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Request- and task-scoped attributes travel in the
// context and are attached to every record by ContextHandler.
package logger
