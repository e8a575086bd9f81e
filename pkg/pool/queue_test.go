package pool

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchen17/webpool/pkg/types"
)

func TestTaskQueue_FIFOSingleProducer(t *testing.T) {
	q := newTaskQueue(0)
	defer q.Close()

	const n = 100
	for i := 0; i < n; i++ {
		task := NewBasicTaskWithID(fmt.Sprintf("task-%d", i), nil)
		require.NoError(t, q.Enqueue(task))
	}

	// Single consumer observes single-producer submission order.
	for i := 0; i < n; i++ {
		task := <-q.Out()
		assert.Equal(t, fmt.Sprintf("task-%d", i), task.ID())
	}
}

func TestTaskQueue_ExactlyOnceDelivery(t *testing.T) {
	q := newTaskQueue(0)

	const producers = 8
	const perProducer = 200
	const consumers = 4

	var mu sync.Mutex
	seen := make(map[string]int)

	var consumerWg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for task := range q.Out() {
				mu.Lock()
				seen[task.ID()]++
				mu.Unlock()
			}
		}()
	}

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(p int) {
			defer producerWg.Done()
			for i := 0; i < perProducer; i++ {
				id := fmt.Sprintf("p%d-t%d", p, i)
				assert.NoError(t, q.Enqueue(NewBasicTaskWithID(id, nil)))
			}
		}(p)
	}

	producerWg.Wait()
	q.Close()
	consumerWg.Wait()

	// Every task delivered to exactly one consumer: no loss, no duplication.
	require.Len(t, seen, producers*perProducer)
	for id, count := range seen {
		assert.Equal(t, 1, count, "task %s delivered %d times", id, count)
	}
}

func TestTaskQueue_EnqueueAfterClose(t *testing.T) {
	q := newTaskQueue(0)
	q.Close()

	err := q.Enqueue(NewBasicTask(nil))
	assert.ErrorIs(t, err, types.ErrQueueClosed)

	// Close is idempotent.
	q.Close()
}

func TestTaskQueue_DrainsBufferedTasksOnClose(t *testing.T) {
	q := newTaskQueue(0)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, q.Enqueue(NewBasicTaskWithID(fmt.Sprintf("task-%d", i), nil)))
	}

	// Wait until the pump has buffered everything, then close intake.
	assert.Eventually(t, func() bool { return q.Len() == n },
		time.Second, time.Millisecond)
	q.Close()

	// Buffered tasks still drain; the delivery channel closes afterwards.
	var received int
	for range q.Out() {
		received++
	}
	assert.Equal(t, n, received)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_BoundBlocksEnqueue(t *testing.T) {
	q := newTaskQueue(1)
	defer q.Close()

	require.NoError(t, q.Enqueue(NewBasicTaskWithID("first", nil)))
	assert.Eventually(t, func() bool { return q.Len() == 1 },
		time.Second, time.Millisecond)

	// The queue is full: a second enqueue with a deadline times out.
	timer := time.NewTimer(20 * time.Millisecond)
	defer timer.Stop()
	err := q.enqueue(NewBasicTaskWithID("second", nil), timer.C)
	assert.ErrorIs(t, err, types.ErrTimeout)

	// Draining one task frees space again.
	task := <-q.Out()
	assert.Equal(t, "first", task.ID())
	require.NoError(t, q.Enqueue(NewBasicTaskWithID("third", nil)))
}

func TestTaskQueue_EnqueueUnblocksOnClose(t *testing.T) {
	q := newTaskQueue(1)

	require.NoError(t, q.Enqueue(NewBasicTaskWithID("first", nil)))
	assert.Eventually(t, func() bool { return q.Len() == 1 },
		time.Second, time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Enqueue(NewBasicTaskWithID("blocked", nil))
	}()

	// Give the producer time to block on the full queue, then close.
	time.Sleep(10 * time.Millisecond)
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, types.ErrQueueClosed)
	case <-ctx.Done():
		t.Fatal("blocked producer was not released by Close")
	}

	// Nothing consumes the buffered task; reclaim it so the pump exits.
	assert.Equal(t, 1, q.Abandon())
}

func TestTaskQueue_AbandonDiscardsBufferedTasks(t *testing.T) {
	q := newTaskQueue(0)

	const n = 10
	for i := 0; i < n; i++ {
		require.NoError(t, q.Enqueue(NewBasicTaskWithID(fmt.Sprintf("task-%d", i), nil)))
	}
	assert.Eventually(t, func() bool { return q.Len() == n },
		time.Second, time.Millisecond)

	// No consumer will ever drain these: Abandon discards them, counts
	// them, and terminates the pump.
	assert.Equal(t, n, q.Abandon())
	assert.Equal(t, 0, q.Len())

	// The delivery channel is closed and Abandon stays idempotent.
	_, ok := <-q.Out()
	assert.False(t, ok)
	assert.Equal(t, n, q.Abandon())

	assert.ErrorIs(t, q.Enqueue(NewBasicTask(nil)), types.ErrQueueClosed)
}

func TestTaskQueue_AbandonAfterDrainDropsNothing(t *testing.T) {
	q := newTaskQueue(0)

	require.NoError(t, q.Enqueue(NewBasicTaskWithID("only", nil)))
	q.Close()

	task := <-q.Out()
	assert.Equal(t, "only", task.ID())

	// The queue drained normally, so there is nothing to discard.
	assert.Equal(t, 0, q.Abandon())
}
