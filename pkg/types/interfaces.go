// Package types defines core interfaces and types shared across the pool.
package types

import (
	"context"
	"time"
)

// Task is a self-contained, one-shot unit of work submitted to a pool.
// A Task is executed exactly once, by whichever worker dequeues it; it is
// never reused. Captured state must be safe to operate on from any
// goroutine - the pool provides no protection for data a task closes over.
type Task interface {
	// Execute runs the task to completion.
	Execute(ctx context.Context) error

	// ID returns a stable identifier for logging and error reporting.
	ID() string
}

// Pool defines the worker pool contract.
type Pool interface {
	// Submit enqueues a task for execution by exactly one worker.
	// Fire-and-forget: it returns as soon as the task is queued.
	Submit(task Task) error

	// SubmitWithTimeout is Submit with an upper bound on how long the
	// caller is willing to wait for queue admission.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// Start spawns the workers. Every worker has entered its dispatch
	// loop before Start returns.
	Start(ctx context.Context) error

	// Stop closes the queue's sending side, drains already-queued tasks
	// and joins all workers.
	Stop() error

	// Close stops the pool and releases resources. Idempotent.
	Close() error

	// Size returns the fixed worker count.
	Size() int

	// Stats returns a snapshot of pool statistics.
	Stats() PoolStats
}

// PoolStats is a point-in-time snapshot of a pool.
type PoolStats struct {
	// PoolSize is the fixed number of workers.
	PoolSize int

	// ActiveWorkers is the number of workers currently executing a task.
	ActiveWorkers int

	// QueuedTasks is the number of tasks accepted but not yet dequeued.
	QueuedTasks int

	// TotalProcessed is the number of tasks that completed without error.
	TotalProcessed int64

	// TotalFailed is the number of tasks that returned an error or panicked.
	TotalFailed int64
}

// ErrorHandler is invoked by a worker when a task fails. Returning a
// non-nil error marks the failure as unhandled; the worker keeps running
// either way.
type ErrorHandler func(err error) error
