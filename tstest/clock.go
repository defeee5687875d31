// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tstest

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/tailscale/monitor/tstime"
)

// ClockOpts configures a Clock made by NewClock.
type ClockOpts struct {
	// Start is the initial value of Now. Give it an explicit location so the
	// test does not depend on TZ. If zero, the current wall time is used.
	Start time.Time
}

// Clock is a tstime.Clock whose time only moves on Advance. Its timers fire
// when an Advance carries Now to or past their deadline, so tests of timed
// waits need no real sleeping.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers map[*fakeTimer]bool // armed timers
}

var _ tstime.Clock = (*Clock)(nil)

// NewClock returns a Clock reading opts.Start.
func NewClock(opts ClockOpts) *Clock {
	now := opts.Start
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Clock{now: now, timers: make(map[*fakeTimer]bool)}
}

// Now reports the simulated time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since reports how much simulated time has passed since t.
func (c *Clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock forward by d, fires every timer that comes due in
// deadline order, and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	for t := range c.timers {
		if !t.deadline.After(c.now) {
			due = append(due, t)
		}
	}
	slices.SortFunc(due, func(a, b *fakeTimer) int {
		return a.deadline.Compare(b.deadline)
	})
	for _, t := range due {
		c.fireLocked(t)
	}
	return c.now
}

// PendingTimers reports how many timers are armed and have not fired.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// WaitForTimers polls until at least n timers are pending, for up to maxWait
// of real time, and reports whether that happened. Call it before Advance
// when the timer is created by another goroutine.
func (c *Clock) WaitForTimers(n int, maxWait time.Duration) bool {
	err := WaitFor(maxWait, func() error {
		if c.PendingTimers() < n {
			return errTimersPending
		}
		return nil
	})
	return err == nil
}

var errTimersPending = errors.New("tstest: too few timers pending")

// NewTimer returns a timer that fires once Now reaches Now()+d. A
// non-positive d fires at once.
func (c *Clock) NewTimer(d time.Duration) (tstime.TimerController, <-chan time.Time) {
	t := &fakeTimer{c: c, ch: make(chan time.Time, 1)}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(t, d)
	return t, t.ch
}

func (c *Clock) armLocked(t *fakeTimer, d time.Duration) {
	t.deadline = c.now.Add(d)
	if d <= 0 {
		c.fireLocked(t)
		return
	}
	c.timers[t] = true
}

func (c *Clock) fireLocked(t *fakeTimer) {
	delete(c.timers, t)
	select {
	case t.ch <- c.now:
	default:
		// Like time.Timer, an unread tick is not replaced.
	}
}

type fakeTimer struct {
	c        *Clock
	ch       chan time.Time
	deadline time.Time
}

// Stop disarms t and reports whether it was armed.
func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	armed := t.c.timers[t]
	delete(t.c.timers, t)
	return armed
}

// Reset rearms t to fire d after the clock's current time and reports
// whether it was armed before.
func (t *fakeTimer) Reset(d time.Duration) bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	armed := t.c.timers[t]
	t.c.armLocked(t, d)
	return armed
}

