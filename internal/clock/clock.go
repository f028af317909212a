// Package clock abstracts the time source so event timestamps and
// uptime can be pinned in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source the daemon stamps events and uptime with.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// System reads the machine clock. Every component uses it outside of
// tests.
var System Clock = sysClock{}

type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now() }

func (sysClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a test clock that only moves when told to.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a mock clock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mock time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Set pins the mock time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock time forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
