package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests and scenarios.
//
// Every call to Now returns the previous reading plus Step, starting at
// Start. The same scenario run against a fresh StepClock therefore stamps
// identical creation times on its messages, which keeps golden traces
// byte-stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// DefaultStart is the first reading of a StepClock created with a zero start.
var DefaultStart = time.Unix(1700000000, 0).UTC()

// NewStepClock creates a clock whose first reading is start.
// A zero start means DefaultStart; a non-positive step means one second.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = DefaultStart
	}
	if step <= 0 {
		step = time.Second
	}
	return &StepClock{start: start, step: step}
}

// Now returns the next reading and advances the clock.
//
// Implements ledger.Clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many readings have been taken.
func (c *StepClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock so the next reading is start again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
