// Package testutils provides deterministic generators and protocol line
// builders for PrEval tests.
package testutils

import (
	"fmt"
	"sync"
	"time"
)

// BaseTime is the first instant returned by a new Clock.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source. It is safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock positioned at BaseTime.
func NewClock() *Clock {
	return &Clock{now: BaseTime}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequentialIDs returns a generator of UUID-shaped identifiers:
// 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, ...
func SequentialIDs() func() string {
	var (
		mu      sync.Mutex
		counter uint64
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("%08x-0000-4000-8000-%012x", counter, counter)
	}
}
