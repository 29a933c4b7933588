// Package jobs runs small dependency graphs of work items on a bounded
// goroutine pool.
//
// A Graph owns every Job created for it. A Job becomes eligible once its own
// start token and every dependency have been released; it is then handed to
// the graph's Scheduler. Graph.Done is closed after the last job finishes, so
// callers never manage the lifetime of individual jobs.
package jobs

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Scheduler executes job bodies. Submit must not block on fn completing.
type Scheduler interface {
	Submit(fn func())
}

// Inline runs every submitted function on the calling goroutine.
// Used by tests that need deterministic ordering.
type Inline struct{}

// Submit runs fn immediately.
func (Inline) Submit(fn func()) { fn() }

// Pool runs submitted functions on goroutines, at most workers at a time.
type Pool struct {
	sem     *semaphore.Weighted
	workers int
	wg      sync.WaitGroup
	active  atomic.Int64
}

// NewPool creates a pool. A non-positive worker count uses GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Active returns the number of submitted functions that have not returned.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Submit queues fn. It returns immediately.
func (p *Pool) Submit(fn func()) {
	p.wg.Add(1)
	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		// Acquire only fails when the context is done.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// Close waits for every submitted function, including ones submitted while
// waiting, to return.
func (p *Pool) Close() {
	p.wg.Wait()
}
