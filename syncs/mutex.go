// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// RawMutex is a mutual exclusion lock that, unlike sync.Mutex, can be
// acquired with a bound (a timeout, deadline or context) and can be released
// with a direct hand-off to the longest waiting goroutine.
//
// Waiters queue in arrival order. A plain Unlock wakes the head of the queue
// but does not reserve the lock for it: a goroutine arriving in the meantime
// may take the lock first ("barging"), in which case the woken waiter goes
// back to the head of the queue. UnlockFair instead transfers ownership to
// the head waiter without ever marking the lock free.
//
// The zero value is an unlocked mutex. A RawMutex must not be copied after
// first use.
type RawMutex struct {
	_ noCopy

	mu      sync.Mutex // guards the fields below
	locked  bool
	waiters list.List // of *lockWaiter; front has waited longest
}

var _ sync.Locker = (*RawMutex)(nil)

type lockWaiter struct {
	ready  chan struct{} // closed by Unlock or UnlockFair
	woken  bool          // removed from the queue by an unlocker
	handed bool          // ownership was transferred by UnlockFair
}

// Lock locks m, blocking until it is available.
func (m *RawMutex) Lock() {
	m.lockSlow(nil, nil)
}

// TryLock tries to lock m without blocking and reports whether it succeeded.
func (m *RawMutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// TryLockFor tries to lock m, blocking for at most d. It reports whether the
// lock was acquired. A non-positive d is equivalent to TryLock.
func (m *RawMutex) TryLockFor(d time.Duration) bool {
	if d <= 0 {
		return m.TryLock()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	return m.lockSlow(t.C, nil)
}

// TryLockUntil is like TryLockFor but takes an absolute deadline.
func (m *RawMutex) TryLockUntil(deadline time.Time) bool {
	return m.TryLockFor(time.Until(deadline))
}

// LockContext locks m, blocking until it is available or ctx is done.
// It returns ctx.Err() if the lock was not acquired.
func (m *RawMutex) LockContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.lockSlow(nil, ctx.Done()) {
		return ctx.Err()
	}
	return nil
}

// lockSlow locks m, giving up when expiry fires or done is closed. Either
// channel may be nil. It reports whether the lock was acquired.
//
// If ownership is handed over at the same moment the bound expires, the
// acquisition wins: the hand-off must not be dropped.
func (m *RawMutex) lockSlow(expiry <-chan time.Time, done <-chan struct{}) bool {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return true
	}
	w := &lockWaiter{ready: make(chan struct{})}
	e := m.waiters.PushBack(w)
	for {
		ready := w.ready
		m.mu.Unlock()

		// expiry fires only once, so remember that it did.
		var bounded bool
		select {
		case <-ready:
		case <-expiry:
			bounded = true
		case <-done:
			bounded = true
		}

		m.mu.Lock()
		switch {
		case w.handed:
			m.mu.Unlock()
			return true
		case !m.locked:
			m.locked = true
			if !w.woken {
				m.waiters.Remove(e)
			}
			m.mu.Unlock()
			return true
		case !w.woken:
			// Bound expired while still queued.
			m.waiters.Remove(e)
			m.mu.Unlock()
			return false
		}

		// Woken by Unlock, but another goroutine barged in first.
		if bounded || expired(expiry, done) {
			m.mu.Unlock()
			return false
		}
		w.ready = make(chan struct{})
		w.woken = false
		e = m.waiters.PushFront(w)
	}
}

// expired reports whether either bound has already fired, without blocking.
func expired(expiry <-chan time.Time, done <-chan struct{}) bool {
	select {
	case <-expiry:
		return true
	case <-done:
		return true
	default:
		return false
	}
}

// Unlock unlocks m and wakes the longest waiting goroutine, if any. The woken
// goroutine competes with newly arriving ones for the lock.
//
// It panics if m is not locked on entry.
func (m *RawMutex) Unlock() {
	m.unlock(false)
}

// UnlockFair unlocks m, handing ownership directly to the longest waiting
// goroutine if there is one, so that no newly arriving goroutine can acquire
// the lock ahead of it.
//
// It panics if m is not locked on entry.
func (m *RawMutex) UnlockFair() {
	m.unlock(true)
}

func (m *RawMutex) unlock(fair bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		panic("syncs: unlock of unlocked RawMutex")
	}
	e := m.waiters.Front()
	if e == nil {
		m.locked = false
		return
	}
	w := m.waiters.Remove(e).(*lockWaiter)
	w.woken = true
	if fair {
		w.handed = true
	} else {
		m.locked = false
	}
	close(w.ready)
}

// IsLocked reports whether m is currently locked. The answer may be stale by
// the time the caller looks at it; it is meant for assertions and debugging.
func (m *RawMutex) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// waiting returns the number of goroutines queued for m.
func (m *RawMutex) waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.Len()
}
