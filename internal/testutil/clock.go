// Package testutil holds deterministic substitutes for the runtime's
// sources of nondeterminism: a manual logical clock for trace sequence
// numbers and a constant call token generator. Scenario traces built on
// them are byte-identical across runs, which is what golden comparison
// needs.
package testutil

import "sync"

// Clock is a thread-safe manual logical clock. It hands out consecutive
// sequence numbers starting at 1 and can be reset, so a re-run scenario
// produces the same numbering.
type Clock struct {
	mu  sync.Mutex
	seq int64
}

// NewClock returns a clock at zero. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments and returns the next sequence number.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last handed-out sequence number without
// advancing.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to zero.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
