// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

// Package processor gives every transport a private serial executor
// without paying per-transport OS-thread cost (spec §4.3). A Processor
// enqueues closures that run in strict FIFO order, one at a time, on a
// shared worker pool sized by golang.org/x/sync/semaphore.
package processor

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is the shared worker pool every Processor schedules onto. A
// single Pool is typically created once per PeerConnection (or
// process) and handed to every Transport's Processor, mirroring the
// reference implementation's one thread pool shared across transports.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool returns a Pool that runs at most concurrency goroutines at
// once across every Processor scheduled onto it.
func NewPool(concurrency int64) *Pool {
	return &Pool{sem: semaphore.NewWeighted(concurrency)}
}

// run acquires a pool slot, runs fn, then releases it. Blocks until a
// slot is free.
func (p *Pool) run(fn func()) {
	_ = p.sem.Acquire(context.Background(), 1)
	defer p.sem.Release(1)
	fn()
}

// Processor serializes a stream of tasks: enqueued closures run in the
// order they were enqueued, never concurrently with one another, even
// though the underlying Pool may be running many other Processors'
// tasks at the same time.
type Processor struct {
	pool *Pool

	mu      sync.Mutex
	pending []func()
	running bool
	closed  bool
}

// New returns a Processor that schedules its tasks onto pool.
func New(pool *Pool) *Processor {
	return &Processor{pool: pool}
}

// Enqueue schedules fn to run after every task already enqueued. It
// never blocks the caller. Enqueue on a destroyed Processor is a no-op;
// transports call Destroy during teardown specifically to make this
// safe.
func (p *Processor) Enqueue(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.enqueueLocked(fn)
}

func (p *Processor) enqueueLocked(fn func()) {
	p.pending = append(p.pending, fn)
	p.kick()
}

// kick starts draining pending tasks on the pool if nothing is
// currently draining. Must be called with p.mu held.
func (p *Processor) kick() {
	if p.running || len(p.pending) == 0 {
		return
	}
	p.running = true
	go p.pool.run(p.drain)
}

// drain runs one task, then either takes the next one directly
// (staying on the same pool goroutine, so a burst of enqueues doesn't
// spawn a new pool acquisition per task) or marks itself idle.
func (p *Processor) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.running = false
			p.mu.Unlock()
			return
		}
		fn := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]
		p.mu.Unlock()

		fn()
	}
}

// Fence blocks until every task enqueued before this call has
// completed. Implemented by enqueueing a closure that closes a channel
// and waiting on it, which guarantees FIFO ordering gives it the right
// position.
func (p *Processor) Fence() {
	done := make(chan struct{})
	p.mu.Lock()
	p.enqueueLocked(func() { close(done) })
	p.mu.Unlock()
	<-done
}

// Destroy prevents further Enqueue calls from scheduling new work and
// waits for in-flight/queued work to finish draining.
func (p *Processor) Destroy() {
	done := make(chan struct{})
	p.mu.Lock()
	p.enqueueLocked(func() { close(done) })
	p.closed = true
	p.mu.Unlock()
	<-done
}
