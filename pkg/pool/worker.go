package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jchen17/webpool/pkg/types"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateWaiting represents a worker blocked on the task queue
	WorkerStateWaiting WorkerState = iota
	// WorkerStateWorking represents a worker executing a task
	WorkerStateWorking
	// WorkerStateStopped represents a worker whose loop has exited
	WorkerStateStopped
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateWaiting:
		return "waiting"
	case WorkerStateWorking:
		return "working"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is a single long-lived worker goroutine. Workers are symmetric
// and interchangeable: any waiting worker may take any pending task, and
// a worker owns no task between executions.
type Worker struct {
	id    int
	state int32 // atomic state
	tasks <-chan types.Task
	ready chan struct{}
	done  chan struct{}

	// statistics
	totalProcessed int64
	totalFailed    int64
	lastTaskTime   int64 // Unix nanosecond timestamp

	// error handling
	errorHandler types.ErrorHandler

	// time operations
	clock types.Clock

	// synchronization
	mu sync.RWMutex
}

// NewWorker creates a new Worker pulling from tasks.
func NewWorker(id int, tasks <-chan types.Task, clock types.Clock) *Worker {
	if clock == nil {
		clock = types.NewRealClock()
	}

	return &Worker{
		id:    id,
		state: int32(WorkerStateWaiting),
		tasks: tasks,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		clock: clock,
	}
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// SetErrorHandler sets the error handler invoked on task faults.
func (w *Worker) SetErrorHandler(handler types.ErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errorHandler = handler
}

// Run is the worker's dispatch loop. It blocks on the task channel,
// executes whatever it receives, and exits once the channel is closed and
// drained or the context is cancelled. Receiving from the channel is the
// only point of contention between workers; a worker never holds the
// channel while executing, so other workers dequeue concurrently.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer atomic.StoreInt32(&w.state, int32(WorkerStateStopped))

	close(w.ready)

	for {
		// Cancellation is an abort: once the context is done the worker
		// must not pick up new tasks, even if the queue has work ready.
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case task, ok := <-w.tasks:
			if !ok {
				return
			}
			w.processTask(ctx, task)
		}
	}
}

// Ready returns a channel closed once the worker has entered its
// dispatch loop.
func (w *Worker) Ready() <-chan struct{} {
	return w.ready
}

// Done returns a channel closed when the worker's loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// processTask runs a single task and records the outcome.
func (w *Worker) processTask(ctx context.Context, task types.Task) {
	atomic.StoreInt32(&w.state, int32(WorkerStateWorking))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateWaiting))

	startTime := w.clock.Now()
	atomic.StoreInt64(&w.lastTaskTime, startTime.UnixNano())

	err := w.executeTask(ctx, task)

	if err != nil {
		atomic.AddInt64(&w.totalFailed, 1)
		w.handleError(err)
	} else {
		atomic.AddInt64(&w.totalProcessed, 1)
	}
}

// executeTask executes a task with panic recovery. A panic is confined to
// the task that raised it: it is converted to an error here so the
// dispatch loop keeps running and the pool does not lose capacity.
func (w *Worker) executeTask(ctx context.Context, task types.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			switch v := r.(type) {
			case error:
				err = types.NewTaskError("worker", task.ID(), v)
			case string:
				err = types.NewTaskError("worker", task.ID(),
					fmt.Errorf("panic: %s", v))
			default:
				err = types.NewTaskError("worker", task.ID(),
					fmt.Errorf("panic: %v", v))
			}

			if te, ok := err.(*types.TaskError); ok {
				te.WithContext("stack_trace", string(buf[:n]))
				te.WithContext("worker_id", w.id)
			}
		}
	}()

	return task.Execute(ctx)
}

// handleError passes a task fault to the configured handler.
func (w *Worker) handleError(err error) {
	w.mu.RLock()
	handler := w.errorHandler
	w.mu.RUnlock()

	if handler != nil {
		// A non-nil return means the handler left the fault unhandled;
		// the fault is already counted, so there is nothing more to do.
		_ = handler(err)
	}
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: atomic.LoadInt64(&w.totalProcessed),
		TotalFailed:    atomic.LoadInt64(&w.totalFailed),
		LastTaskTime:   time.Unix(0, atomic.LoadInt64(&w.lastTaskTime)),
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalFailed    int64
	LastTaskTime   time.Time
}

// IsActive checks if the Worker is executing a task
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateWorking
}
