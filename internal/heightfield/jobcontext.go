package heightfield

import (
	"sync"
	"sync/atomic"
)

// RefreshContext is the cancellation and completion state shared by the jobs
// of a collider's refresh cycles.
type RefreshContext interface {
	Cancel()
	IsCanceled() bool
	OnRefreshStart()
	OnRefreshComplete()
	BlockUntilComplete()
}

// JobContext is the RefreshContext used by colliders. One instance is reused
// for every cycle of a collider.
type JobContext struct {
	canceled atomic.Bool

	mu         sync.Mutex
	cond       *sync.Cond
	inProgress bool
}

// NewJobContext returns an idle context.
func NewJobContext() *JobContext {
	c := &JobContext{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Cancel asks the running cycle to skip its remaining work. It never blocks.
func (c *JobContext) Cancel() {
	c.canceled.Store(true)
}

// IsCanceled is polled by every job step before doing work.
func (c *JobContext) IsCanceled() bool {
	return c.canceled.Load()
}

// OnRefreshStart marks a cycle as running and clears cancellation.
func (c *JobContext) OnRefreshStart() {
	c.mu.Lock()
	c.canceled.Store(false)
	c.inProgress = true
	c.mu.Unlock()
}

// OnRefreshComplete marks the cycle as finished and wakes every waiter. It
// must run exactly once per cycle, canceled or not.
func (c *JobContext) OnRefreshComplete() {
	c.mu.Lock()
	c.inProgress = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

// BlockUntilComplete waits for the running cycle, if any. Never call it from a
// job of the cycle being waited on.
func (c *JobContext) BlockUntilComplete() {
	c.mu.Lock()
	for c.inProgress {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// InProgress reports whether a cycle is running.
func (c *JobContext) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}
