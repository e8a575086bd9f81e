// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrPoolNotStarted indicates a submission before Start.
	ErrPoolNotStarted = errors.New("pool is not started")

	// ErrPoolClosed indicates a submission after the pool was closed.
	// Late submissions are rejected with this error rather than treated
	// as fatal, so callers can decide how to handle them.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrQueueClosed indicates an enqueue on a closed task queue.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrNilTask indicates a nil task was submitted.
	ErrNilTask = errors.New("task cannot be nil")

	// ErrTimeout indicates queue admission timed out.
	ErrTimeout = errors.New("operation timeout")
)

// TaskError represents a failure raised while executing a task. Worker
// panics are converted into a TaskError carrying the captured stack trace
// in its context.
type TaskError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// TaskID identifies the task that failed
	TaskID string

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed in %s: %v", e.TaskID, e.Operation, e.Cause)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewTaskError creates a new task error
func NewTaskError(operation, taskID string, cause error) *TaskError {
	return &TaskError{
		Operation: operation,
		TaskID:    taskID,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *TaskError) WithContext(key string, value interface{}) *TaskError {
	e.Context[key] = value
	return e
}
