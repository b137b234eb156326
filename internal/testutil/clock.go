package testutil

import (
	"sync"
	"time"
)

// StubClock is a manually advanced clock for tests.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock starts the clock at now.
func NewStubClock(now time.Time) *StubClock {
	return &StubClock{now: now}
}

// Now returns the current stub time.
func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
