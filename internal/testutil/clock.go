package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe stepping wall clock for tests.
//
// The first call to Now returns the start time; every later call advances by
// the configured step. The same sequence of calls always yields the same
// timestamps, which keeps created_at fields and golden traces stable.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// DefaultStart is the start time used when NewDeterministicClock receives a
// zero time.
var DefaultStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// NewDeterministicClock creates a clock starting at start and advancing by
// step per call. A zero start uses DefaultStart; a zero step uses one second.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	if start.IsZero() {
		start = DefaultStart
	}
	if step == 0 {
		step = time.Second
	}
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now returns the next timestamp.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock so the next Now returns the start time again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
