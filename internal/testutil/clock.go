package testutil

import "sync"

// Clock is a deterministic millisecond timestamp source for stores under test.
//
// The first Now returns start+step; each later call adds step. The same
// scenario run with a fresh Clock stamps identical timestamps, which keeps
// golden traces byte-identical.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu    sync.Mutex
	start int64
	step  int64
	now   int64
}

// NewClock creates a clock at start advancing by step per call.
// A step below 1 is treated as 1 so timestamps never repeat.
func NewClock(start, step int64) *Clock {
	if step < 1 {
		step = 1
	}
	return &Clock{start: start, step: step, now: start}
}

// Now advances the clock and returns the new time.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the last time handed out without advancing.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
