/*
Package pool implements a fixed-size worker pool with a single shared
task queue.

# Overview

A FixedPool owns N long-lived worker goroutines that all pull from one
multi-producer multi-consumer queue. Each submitted task is executed
exactly once by whichever worker dequeues it; at most N tasks execute at
any instant. No goroutine is spawned per task - amortizing that cost is
the pool's entire value proposition.

# Core Components

## FixedPool

The pool itself: construction with a fixed worker count (size zero fails
immediately), fire-and-forget Submit, graceful Stop that drains queued
tasks before joining the workers, and basic statistics.

## Worker

A single worker goroutine: Waiting -> Working -> Waiting, terminal
Stopped once the queue closes and drains. Task panics are caught at the
dispatch loop, converted to errors and handed to the configured error
handler, so a faulting task never costs the pool a worker.

## Task Queue

Unbounded FIFO by default; an optional bound turns queue admission into
backpressure. Delivery to workers goes through a channel, so exactly-once
delivery under concurrent consumers falls out of channel semantics.

# Ordering

Tasks submitted in sequence by a single caller are dequeued in that
order. Nothing is guaranteed about completion order, or about ordering
between concurrent submitters.

# Usage

	p, err := pool.New(&pool.Config{PoolSize: 4})
	if err != nil {
		log.Fatal(err)
	}
	if err := p.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer p.Close()

	err = p.Submit(pool.NewBasicTask(func(ctx context.Context) error {
		// do work
		return nil
	}))

Completion can be observed per task when needed:

	f, err := p.SubmitWait(task)
	if err == nil {
		err = f.Wait(ctx)
	}
*/
package pool
