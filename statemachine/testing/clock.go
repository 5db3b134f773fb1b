package testing

import (
	"sort"
	"sync"
	"time"

	"github.com/amp-labs/statechart/statemachine"
)

// ManualClock is a statemachine.Clock whose time only moves when Advance is
// called. Due timers fire synchronously inside Advance, in deadline order, so
// a test observes their transitions as soon as Advance returns.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	seq      uint64
	fn       func()
}

// NewManualClock creates a clock set to start, or to a fixed date when omitted.
func NewManualClock(start ...time.Time) *ManualClock {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if len(start) > 0 {
		now = start[0]
	}

	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// AfterFunc arms a timer. A non-positive delay is due immediately but still
// only fires on the next Advance.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) statemachine.Timer { //nolint:ireturn
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{clock: c, deadline: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)

	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	return t.clock.removeLocked(t)
}

func (c *ManualClock) removeLocked(t *manualTimer) bool {
	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)

			return true
		}
	}

	return false
}

// Advance moves time forward by d, firing every timer that becomes due,
// including timers armed by the callbacks themselves.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()

		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].deadline.Equal(c.timers[j].deadline) {
				return c.timers[i].seq < c.timers[j].seq
			}

			return c.timers[i].deadline.Before(c.timers[j].deadline)
		})

		if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
			c.now = target
			c.mu.Unlock()

			return
		}

		due := c.timers[0]
		c.timers = c.timers[1:]

		if due.deadline.After(c.now) {
			c.now = due.deadline
		}

		c.mu.Unlock()

		due.fn()
	}
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}
