package testutil

import (
	"sync"
	"time"
)

// FakeClock provides a controllable clock for store retention tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock initializes a FakeClock at the provided start time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake time forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
