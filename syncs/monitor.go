// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"context"
	"time"

	"github.com/tailscale/monitor/tstime"
)

// Monitor owns a value of type T together with the lock guarding it and a
// condition variable bound to that lock.
//
// The value is only reachable through a MonitorGuard returned by one of the
// Lock methods, or through IntoInner and GetMut when the caller is known to
// be the Monitor's only user.
//
// The zero value is an unlocked Monitor holding the zero T. A Monitor must
// not be copied after first use.
type Monitor[T any] struct {
	mu  RawMutex
	cv  cond // cv.L is &mu, set on first lock
	clk tstime.Clock
	v   T
}

// NewMonitor returns a Monitor owning v.
func NewMonitor[T any](v T) *Monitor[T] {
	return &Monitor[T]{v: v}
}

// SetClock sets the clock used to time the bounded methods of m and of its
// guards. It must be called before m is shared between goroutines.
// A nil clock restores the default, tstime.StdClock.
func (m *Monitor[T]) SetClock(c tstime.Clock) {
	m.clk = c
}

func (m *Monitor[T]) clock() tstime.Clock {
	if m.clk == nil {
		return tstime.StdClock{}
	}
	return m.clk
}

func (m *Monitor[T]) newGuard() *MonitorGuard[T] {
	if m.cv.L == nil {
		m.cv.L = &m.mu
	}
	g := &MonitorGuard[T]{m: m}
	g.hold.start()
	return g
}

// Lock blocks until it holds m's lock and returns the guard for it.
// The caller must call Unlock on the guard, typically with defer.
func (m *Monitor[T]) Lock() *MonitorGuard[T] {
	m.mu.Lock()
	return m.newGuard()
}

// TryLock acquires m's lock only if it is free. It never blocks.
func (m *Monitor[T]) TryLock() (*MonitorGuard[T], bool) {
	if !m.mu.TryLock() {
		return nil, false
	}
	return m.newGuard(), true
}

// TryLockFor acquires m's lock, blocking for at most d. It returns false if d
// elapsed first. A non-positive d is equivalent to TryLock.
func (m *Monitor[T]) TryLockFor(d time.Duration) (*MonitorGuard[T], bool) {
	if d <= 0 {
		return m.TryLock()
	}
	t, expiry := m.clock().NewTimer(d)
	defer t.Stop()
	if !m.mu.lockSlow(expiry, nil) {
		return nil, false
	}
	return m.newGuard(), true
}

// TryLockUntil is like TryLockFor but takes an absolute deadline, according
// to m's clock.
func (m *Monitor[T]) TryLockUntil(deadline time.Time) (*MonitorGuard[T], bool) {
	return m.TryLockFor(tstime.Until(m.clock(), deadline))
}

// LockContext acquires m's lock, blocking until it is available or ctx is
// done. If ctx ends first it returns ctx.Err() and no guard.
func (m *Monitor[T]) LockContext(ctx context.Context) (*MonitorGuard[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.mu.lockSlow(nil, ctx.Done()) {
		return nil, ctx.Err()
	}
	return m.newGuard(), nil
}

// Do calls f with m locked. The lock is released when f returns, including
// when f panics.
func (m *Monitor[T]) Do(f func(*MonitorGuard[T])) {
	g := m.Lock()
	defer g.Unlock()
	f(g)
}

// IsLocked reports whether m's lock is currently held. Like
// RawMutex.IsLocked, the answer may already be stale when it is returned.
func (m *Monitor[T]) IsLocked() bool {
	return m.mu.IsLocked()
}

// IntoInner returns the value owned by m without locking.
//
// The caller must be m's only user: no other goroutine may hold a reference
// to m, so no guard can be live. Typical uses are reading the final result
// after all workers have finished, or tearing m down. Builds with the
// ts_monitor_debug tag panic if m is locked.
func (m *Monitor[T]) IntoInner() T {
	checkExclusive(&m.mu, "IntoInner")
	return m.v
}

// GetMut returns a pointer to the value owned by m without locking.
//
// It has the same precondition as IntoInner: it is meant for setting up the
// value before m is published to other goroutines, or for inspecting it
// after they are done.
func (m *Monitor[T]) GetMut() *T {
	checkExclusive(&m.mu, "GetMut")
	return &m.v
}

// WithLock calls f with m locked and returns its result. The lock is
// released before WithLock returns, whatever f does.
func WithLock[T, U any](m *Monitor[T], f func(*MonitorGuard[T]) U) U {
	g := m.Lock()
	defer g.Unlock()
	return f(g)
}

// TryWithLock calls f only if m's lock can be acquired without blocking. It
// reports false, without calling f, otherwise.
func TryWithLock[T, U any](m *Monitor[T], f func(*MonitorGuard[T]) U) (U, bool) {
	g, ok := m.TryLock()
	return withGuard(g, ok, f)
}

// TryWithLockFor is like TryWithLock but waits up to d for the lock.
func TryWithLockFor[T, U any](m *Monitor[T], d time.Duration, f func(*MonitorGuard[T]) U) (U, bool) {
	g, ok := m.TryLockFor(d)
	return withGuard(g, ok, f)
}

// TryWithLockUntil is like TryWithLock but waits until deadline for the lock.
func TryWithLockUntil[T, U any](m *Monitor[T], deadline time.Time, f func(*MonitorGuard[T]) U) (U, bool) {
	g, ok := m.TryLockUntil(deadline)
	return withGuard(g, ok, f)
}

func withGuard[T, U any](g *MonitorGuard[T], ok bool, f func(*MonitorGuard[T]) U) (_ U, _ bool) {
	if !ok {
		return
	}
	defer g.Unlock()
	return f(g), true
}
