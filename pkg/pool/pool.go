package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	poolerrors "github.com/jchen17/webpool/internal/errors"
	"github.com/jchen17/webpool/internal/logger"
	"github.com/jchen17/webpool/pkg/types"
)

// pool states
const (
	stateCreated int32 = iota
	stateRunning
	stateStopped
	stateClosed
)

// Config defines configuration for a fixed pool.
type Config struct {
	// PoolSize is the number of workers. Must be positive.
	PoolSize int

	// QueueBound caps the number of queued tasks; 0 means unbounded.
	QueueBound int

	// SubmitTimeout bounds how long Submit waits for queue admission.
	// Only relevant with a bounded queue under sustained overload.
	SubmitTimeout time.Duration

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// ErrorHandler receives task faults. Defaults to logging the fault
	// and keeping the worker alive.
	ErrorHandler types.ErrorHandler

	// Logger for pool lifecycle events (optional).
	Logger *logger.Logger
}

// DefaultConfig returns the default configuration: four workers and an
// unbounded queue.
func DefaultConfig() *Config {
	return &Config{
		PoolSize:      4,
		QueueBound:    0,
		SubmitTimeout: 5 * time.Second,
		Clock:         types.NewRealClock(),
	}
}

// FixedPool is a fixed-size worker pool. Exactly PoolSize workers live
// for the pool's lifetime; every submitted task is executed exactly once
// by one of them, and at most PoolSize tasks execute at any instant.
type FixedPool struct {
	config  *Config
	workers []*Worker
	queue   *taskQueue

	// state management
	state     int32
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ types.Pool = (*FixedPool)(nil)

// New creates a fixed pool. Requesting a pool of zero or negative size is
// a caller error and fails immediately, leaving nothing behind.
func New(config *Config) (*FixedPool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// parameter validation
	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", config.PoolSize)
	}
	if config.QueueBound < 0 {
		return nil, fmt.Errorf("queue bound must not be negative, got %d", config.QueueBound)
	}

	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = logger.Default
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = poolerrors.LogAndContinue(config.Logger)
	}

	queue := newTaskQueue(config.QueueBound)
	workers := make([]*Worker, config.PoolSize)
	for i := 0; i < config.PoolSize; i++ {
		worker := NewWorker(i, queue.Out(), config.Clock)
		worker.SetErrorHandler(config.ErrorHandler)
		workers[i] = worker
	}

	return &FixedPool{
		config:  config,
		workers: workers,
		queue:   queue,
	}, nil
}

// Start spawns the worker goroutines. Every worker has entered its
// dispatch loop once Start returns.
func (p *FixedPool) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.state, stateCreated, stateRunning) {
		switch atomic.LoadInt32(&p.state) {
		case stateRunning:
			return fmt.Errorf("pool is already running")
		default:
			return types.ErrPoolClosed
		}
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	for _, worker := range p.workers {
		go worker.Run(p.ctx)
	}
	for _, worker := range p.workers {
		<-worker.Ready()
	}

	// Cancelling the context aborts the workers without a drain, so once
	// they are gone reclaim whatever the queue still holds. On a graceful
	// Stop the queue has already drained and nothing is dropped.
	go func() {
		<-p.ctx.Done()
		for _, worker := range p.workers {
			<-worker.Done()
		}
		if dropped := p.queue.Abandon(); dropped > 0 {
			p.config.Logger.Warn("pool context cancelled, dropped %d undelivered tasks", dropped)
		}
	}()

	p.config.Logger.Debug("pool started with %d workers", len(p.workers))
	return nil
}

// Submit enqueues a task for execution by exactly one worker. It returns
// as soon as the task is queued; there is no way to observe completion
// through Submit itself (use SubmitWait for that).
func (p *FixedPool) Submit(task types.Task) error {
	return p.SubmitWithTimeout(task, p.config.SubmitTimeout)
}

// SubmitWithTimeout submits a task with an admission timeout. With an
// unbounded queue admission is effectively immediate; with a bound it may
// block until space frees up or the timeout fires.
func (p *FixedPool) SubmitWithTimeout(task types.Task, timeout time.Duration) error {
	if err := p.submitState(); err != nil {
		return err
	}
	if task == nil {
		return types.ErrNilTask
	}

	if timeout <= 0 {
		return p.enqueue(task, nil)
	}

	timer := p.config.Clock.NewTimer(timeout)
	defer timer.Stop()
	return p.enqueue(task, timer.C())
}

// SubmitWait submits a task and returns a one-shot handle fulfilled by
// the worker that executes it.
func (p *FixedPool) SubmitWait(task types.Task) (*Future, error) {
	if err := p.submitState(); err != nil {
		return nil, err
	}
	if task == nil {
		return nil, types.ErrNilTask
	}

	future := newFuture()
	if err := p.enqueue(&futureTask{Task: task, future: future}, nil); err != nil {
		return nil, err
	}
	return future, nil
}

func (p *FixedPool) submitState() error {
	switch atomic.LoadInt32(&p.state) {
	case stateRunning:
		return nil
	case stateCreated:
		return types.ErrPoolNotStarted
	default:
		return types.ErrPoolClosed
	}
}

func (p *FixedPool) enqueue(task types.Task, timeout <-chan time.Time) error {
	err := p.queue.enqueue(task, timeout)
	if errors.Is(err, types.ErrQueueClosed) {
		// Stopped between the state check and the enqueue.
		return types.ErrPoolClosed
	}
	return err
}

// Stop closes the queue's sending side and joins all workers. Tasks
// already queued drain before the workers exit; new submissions are
// rejected with ErrPoolClosed. If the Start context was cancelled the
// workers exit without draining; Stop then discards the undelivered
// tasks and reports how many were dropped.
func (p *FixedPool) Stop() error {
	if !atomic.CompareAndSwapInt32(&p.state, stateRunning, stateStopped) {
		switch atomic.LoadInt32(&p.state) {
		case stateCreated:
			return types.ErrPoolNotStarted
		default:
			return types.ErrPoolClosed
		}
	}

	p.queue.Close()

	// wait for every worker's dispatch loop to exit
	done := make(chan struct{})
	go func() {
		for _, worker := range p.workers {
			<-worker.Done()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-p.config.Clock.After(10 * time.Second):
		return fmt.Errorf("timeout waiting for workers to stop")
	}

	if p.cancel != nil {
		p.cancel()
	}

	if dropped := p.queue.Abandon(); dropped > 0 {
		return fmt.Errorf("pool stopped, dropped %d undelivered tasks", dropped)
	}

	p.config.Logger.Debug("pool stopped, %d workers joined", len(p.workers))
	return nil
}

// Close stops the pool and releases resources. Idempotent.
func (p *FixedPool) Close() error {
	var closeErr error

	p.closeOnce.Do(func() {
		if atomic.LoadInt32(&p.state) == stateRunning {
			closeErr = p.Stop()
		} else {
			p.queue.Close()
			if p.cancel != nil {
				p.cancel()
			}
		}
		atomic.StoreInt32(&p.state, stateClosed)
	})

	return closeErr
}

// Size returns the fixed worker count.
func (p *FixedPool) Size() int {
	return p.config.PoolSize
}

// QueueLength returns the number of tasks accepted but not yet dequeued.
func (p *FixedPool) QueueLength() int {
	return p.queue.Len()
}

// IsRunning checks if the pool is running.
func (p *FixedPool) IsRunning() bool {
	return atomic.LoadInt32(&p.state) == stateRunning
}

// IsClosed checks if the pool is stopped or closed.
func (p *FixedPool) IsClosed() bool {
	state := atomic.LoadInt32(&p.state)
	return state == stateStopped || state == stateClosed
}

// Stats returns a snapshot of pool statistics.
func (p *FixedPool) Stats() types.PoolStats {
	stats := types.PoolStats{
		PoolSize:    p.config.PoolSize,
		QueuedTasks: p.queue.Len(),
	}
	for _, worker := range p.workers {
		ws := worker.Stats()
		if ws.IsActive() {
			stats.ActiveWorkers++
		}
		stats.TotalProcessed += ws.TotalProcessed
		stats.TotalFailed += ws.TotalFailed
	}
	return stats
}

// WorkerStatsAll returns per-worker statistics.
func (p *FixedPool) WorkerStatsAll() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, worker := range p.workers {
		stats[i] = worker.Stats()
	}
	return stats
}
