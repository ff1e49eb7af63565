package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe clock for tests that advances by a
// fixed step on every reading.
//
// The same test run twice with a fresh DeterministicClock sees identical
// timestamps, which keeps archive listings golden-comparable.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// DefaultClockBase is the first reading of a clock created with a zero base.
var DefaultClockBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewDeterministicClock creates a clock that starts at base (DefaultClockBase
// if zero) and advances by one second per call to Now.
func NewDeterministicClock(base time.Time) *DeterministicClock {
	if base.IsZero() {
		base = DefaultClockBase
	}
	return &DeterministicClock{base: base, step: time.Second}
}

// Now returns the next reading. The first call returns base.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Readings returns how many times Now has been called.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock so the next Now returns base again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
