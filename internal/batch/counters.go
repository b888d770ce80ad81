package batch

import "sync"

// RunCounters counts completed jobs. The lock is held only for the increment.
type RunCounters struct {
	mu        sync.Mutex
	completed int64
}

// Increment records one completed job and returns the new total.
func (c *RunCounters) Increment() int64 {
	c.mu.Lock()
	c.completed++
	n := c.completed
	c.mu.Unlock()
	return n
}
