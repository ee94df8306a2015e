// Package clock abstracts the monotonic clock so that every timeout in the
// controller is a deadline comparison that tests can drive deterministically.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
}

// Real uses the time package.
type Real struct{}

func (Real) Now() time.Time                  { return time.Now() }
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }
func (Real) Sleep(d time.Duration)           { time.Sleep(d) }

// Mock is a manually driven clock.  Sleep returns immediately but moves the
// clock forward, so code that sleeps until a deadline still reaches it.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Mock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock forward without recording a sleep.
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Mock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Sleeps returns a copy of every recorded sleep, in order.
func (c *Mock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]time.Duration, len(c.sleeps))
	copy(result, c.sleeps)
	return result
}

// ResetSleeps forgets the recorded sleeps.
func (c *Mock) ResetSleeps() {
	c.mu.Lock()
	c.sleeps = nil
	c.mu.Unlock()
}
