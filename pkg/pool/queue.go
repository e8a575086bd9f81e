package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jchen17/webpool/pkg/types"
)

// taskQueue is the single shared channel between submitters and workers.
// It is multi-producer, multi-consumer and unbounded by default: a pump
// goroutine sits between an intake channel and a delivery channel and
// buffers everything in between. Receiving from the delivery channel is
// the dequeue operation, so exactly-once delivery under concurrent
// consumers comes from channel semantics; consumers block on the channel
// concurrently without excluding each other from waiting.
type taskQueue struct {
	in        chan types.Task
	out       chan types.Task
	closed    chan struct{}
	abandoned chan struct{}
	done      chan struct{}

	// bound limits the number of buffered tasks; 0 means unbounded.
	bound int

	// buffered counts tasks accepted but not yet delivered.
	buffered int64

	// dropped counts tasks discarded by Abandon.
	dropped int64

	closeOnce   sync.Once
	abandonOnce sync.Once
}

func newTaskQueue(bound int) *taskQueue {
	q := &taskQueue{
		in:        make(chan types.Task),
		out:       make(chan types.Task),
		closed:    make(chan struct{}),
		abandoned: make(chan struct{}),
		done:      make(chan struct{}),
		bound:     bound,
	}
	go q.pump()
	return q
}

// pump moves tasks from the intake side to the delivery side, buffering
// in FIFO order. It exits once the queue is closed and the buffer has
// drained, or immediately once the queue is abandoned; either way the
// delivery channel is closed so workers terminate, and the pump never
// outlives the queue.
func (q *taskQueue) pump() {
	defer close(q.done)
	defer close(q.out)

	var buf []types.Task
	intakeOpen := true

	for intakeOpen || len(buf) > 0 {
		in := q.in
		if q.bound > 0 && len(buf) >= q.bound {
			in = nil
		}

		var out chan types.Task
		var next types.Task
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}

		if intakeOpen {
			select {
			case task := <-in:
				buf = append(buf, task)
				atomic.AddInt64(&q.buffered, 1)
			case out <- next:
				buf = buf[1:]
				atomic.AddInt64(&q.buffered, -1)
			case <-q.closed:
				intakeOpen = false
			case <-q.abandoned:
				q.discard(buf)
				return
			}
			continue
		}

		select {
		case out <- next:
			buf = buf[1:]
			atomic.AddInt64(&q.buffered, -1)
		case <-q.abandoned:
			q.discard(buf)
			return
		}
	}
}

// discard drops undelivered tasks, keeping the counters consistent.
func (q *taskQueue) discard(buf []types.Task) {
	atomic.AddInt64(&q.dropped, int64(len(buf)))
	atomic.AddInt64(&q.buffered, -int64(len(buf)))
}

// Enqueue adds a task to the queue. It fails with ErrQueueClosed once the
// queue is closed; while the queue is open it never drops a task. With a
// bound configured it blocks until space frees up.
func (q *taskQueue) Enqueue(task types.Task) error {
	return q.enqueue(task, nil)
}

// enqueue is Enqueue with an optional admission deadline channel.
func (q *taskQueue) enqueue(task types.Task, timeout <-chan time.Time) error {
	select {
	case <-q.closed:
		return types.ErrQueueClosed
	default:
	}

	select {
	case q.in <- task:
		return nil
	case <-q.closed:
		return types.ErrQueueClosed
	case <-timeout:
		return types.ErrTimeout
	}
}

// Out returns the delivery channel. It is closed once the queue is closed
// and every buffered task has been handed to a consumer, or once the
// queue is abandoned.
func (q *taskQueue) Out() <-chan types.Task {
	return q.out
}

// Close stops intake. Buffered tasks still drain to consumers. Idempotent.
func (q *taskQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Abandon closes the queue, discards any tasks no consumer will ever
// receive and waits for the pump to terminate. It returns the total
// number of tasks dropped over the queue's lifetime. Used when the
// consumers are gone and a drain is no longer possible. Idempotent.
func (q *taskQueue) Abandon() int {
	q.Close()
	q.abandonOnce.Do(func() {
		close(q.abandoned)
	})
	<-q.done
	return int(atomic.LoadInt64(&q.dropped))
}

// Len returns the number of buffered tasks.
func (q *taskQueue) Len() int {
	return int(atomic.LoadInt64(&q.buffered))
}
