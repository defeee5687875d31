// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"context"
	"time"

	"github.com/tailscale/monitor/tstime"
)

// MonitorGuard is held by the goroutine that currently owns a Monitor's
// lock. Through it the goroutine reads and writes the Monitor's value and
// waits for or signals changes to it.
//
// A guard belongs to the goroutine that acquired it and must not be shared.
// Once Unlock has been called, any method other than Unlock panics.
type MonitorGuard[T any] struct {
	m        *Monitor[T]
	released bool
	hold     holdTimer
}

func (g *MonitorGuard[T]) check() {
	if g.released {
		panic("syncs: use of released MonitorGuard")
	}
}

// Value returns a pointer to the guarded value. The pointer must not be used
// after the guard is released.
func (g *MonitorGuard[T]) Value() *T {
	g.check()
	return &g.m.v
}

// Get returns a copy of the guarded value.
func (g *MonitorGuard[T]) Get() T {
	g.check()
	return g.m.v
}

// Set replaces the guarded value with v.
func (g *MonitorGuard[T]) Set(v T) {
	g.check()
	g.m.v = v
}

// Unlock releases the lock. Calling it again is a no-op, so it is always safe
// to defer Unlock even on paths that already released the guard.
func (g *MonitorGuard[T]) Unlock() {
	if g.released {
		return
	}
	g.released = true
	g.hold.stop()
	g.m.mu.Unlock()
}

// NotifyOne wakes the goroutine that has been waiting longest on the
// Monitor, if any. The lock stays held; the woken goroutine resumes once it
// can reacquire it.
func (g *MonitorGuard[T]) NotifyOne() {
	g.check()
	g.m.cv.Signal()
}

// NotifyAll wakes every goroutine waiting on the Monitor. Each of them
// resumes only after reacquiring the lock in turn.
func (g *MonitorGuard[T]) NotifyAll() {
	g.check()
	g.m.cv.Broadcast()
}

// Wait atomically releases the lock and suspends the calling goroutine until
// another goroutine calls NotifyOne or NotifyAll. The lock is reacquired
// before Wait returns.
//
// A return from Wait does not mean the condition the caller is waiting for
// holds; callers must check it again in a loop, or use WaitWhile.
func (g *MonitorGuard[T]) Wait() {
	g.check()
	g.wait(nil, nil)
}

// WaitFor is like Wait but gives up after d. The lock is reacquired before
// WaitFor returns whether or not it timed out. A non-positive d times out
// immediately without releasing the lock.
func (g *MonitorGuard[T]) WaitFor(d time.Duration) WaitTimeoutResult {
	g.check()
	if d <= 0 {
		return true
	}
	t, expiry := g.m.clock().NewTimer(d)
	defer t.Stop()
	return !WaitTimeoutResult(g.wait(expiry, nil))
}

// WaitUntil is like WaitFor but takes an absolute deadline, according to the
// Monitor's clock.
func (g *MonitorGuard[T]) WaitUntil(deadline time.Time) WaitTimeoutResult {
	g.check()
	return g.WaitFor(tstime.Until(g.m.clock(), deadline))
}

// WaitContext is like Wait but also returns when ctx is done, in which case
// it returns ctx.Err(). The lock is held again on return either way.
func (g *MonitorGuard[T]) WaitContext(ctx context.Context) error {
	g.check()
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.wait(nil, ctx.Done()) {
		return ctx.Err()
	}
	return nil
}

// WaitWhile waits for as long as cond reports true for the guarded value.
// It returns with the lock held and cond false.
func (g *MonitorGuard[T]) WaitWhile(cond func(*T) bool) {
	g.check()
	for cond(&g.m.v) {
		g.wait(nil, nil)
	}
}

// WaitWhileFor is like WaitWhile but stops waiting once d has elapsed in
// total. It reports a timeout only if cond still holds at that point.
func (g *MonitorGuard[T]) WaitWhileFor(d time.Duration, cond func(*T) bool) WaitTimeoutResult {
	g.check()
	deadline := g.m.clock().Now().Add(d)
	for cond(&g.m.v) {
		if g.WaitUntil(deadline).TimedOut() {
			return WaitTimeoutResult(cond(&g.m.v))
		}
	}
	return false
}

func (g *MonitorGuard[T]) wait(expiry <-chan time.Time, done <-chan struct{}) (notified bool) {
	g.hold.stop()
	notified = g.m.cv.Wait(demand{expiry: expiry, cancel: done}) == nil
	g.hold.start()
	return notified
}
