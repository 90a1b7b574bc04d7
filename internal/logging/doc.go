// Package logging centralizes slog construction and the structured field
// vocabulary used across the worker. Task state transitions are logged with a
// task_id field at every step so a single grep reconstructs a task's history.
package logging
