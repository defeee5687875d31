// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

// The methods in this file step outside the guard discipline. None of them
// validate their preconditions; breaking one corrupts the Monitor's state
// (for example, a guard that keeps being used after its lock was forced
// open no longer provides mutual exclusion).

// UnsafeRaw returns the lock underlying m, for interop with code that
// expects a sync.Locker or needs RawMutex's own methods.
//
// Locking or unlocking the returned mutex directly bypasses any guard: the
// caller must not unlock it while a guard is live, and must not wait on m
// while holding it other than through a guard.
func (m *Monitor[T]) UnsafeRaw() *RawMutex {
	return &m.mu
}

// UnsafeForceUnlock releases m's lock without going through a guard.
//
// The lock must be held, typically because the guard was deliberately
// abandoned (for example after acquiring via UnsafeRaw, or to release across
// a callback boundary), and no guard for it may be used afterwards.
func (m *Monitor[T]) UnsafeForceUnlock() {
	m.mu.Unlock()
}

// UnsafeForceUnlockFair is like UnsafeForceUnlock but hands the lock
// directly to the goroutine that has been waiting for it longest, if any,
// instead of letting a newly arriving goroutine take it first.
//
// It has the same preconditions as UnsafeForceUnlock.
func (m *Monitor[T]) UnsafeForceUnlockFair() {
	m.mu.UnlockFair()
}
