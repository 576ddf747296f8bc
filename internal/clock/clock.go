// Package clock hands out edge update timestamps.
package clock

import (
	"sync"
	"time"
)

// Clock returns UTC timestamps at nanosecond precision that strictly
// increase across calls on the same Clock, so two edges created back to back
// never share an update time.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func New() *Clock {
	return &Clock{now: time.Now}
}

// NewWithSource is used by tests to pin the wall clock.
func NewWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	nanos := c.now().UnixNano()
	if nanos <= c.last {
		nanos = c.last + 1
	}
	c.last = nanos
	return time.Unix(0, nanos).UTC()
}
