package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/jchen17/webpool/pkg/types"
)

// Future is a one-shot completion handle for a submitted task. Submission
// through the pool stays fire-and-forget; a Future only adds an optional
// way to observe that the task finished and whether it failed.
type Future struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done returns a channel closed once the task has finished executing.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task's error. It is only meaningful after Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete fulfils the future. Only the first call has effect.
func (f *Future) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// futureTask wraps a task so the executing worker fulfils its future.
type futureTask struct {
	types.Task
	future *Future
}

// Execute runs the wrapped task and records the outcome on the future.
// A panicking task still fulfils the future before the panic propagates
// to the worker's recovery boundary.
func (t *futureTask) Execute(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			t.future.complete(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	err := t.Task.Execute(ctx)
	t.future.complete(err)
	return err
}
