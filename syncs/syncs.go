// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package syncs contains a monitor object, Monitor, that pairs a value with
// the lock protecting it and a condition variable bound to that lock, plus
// the lock type underneath it.
//
// All access to a Monitor's value goes through a MonitorGuard, which is the
// proof that the caller holds the lock. While holding a guard, a goroutine
// may wait for the value to change (releasing the lock while suspended) or
// notify other waiters.
//
// Wake-up order: goroutines blocked in Lock are queued in arrival order, but
// a plain unlock lets a newly arriving goroutine acquire the lock ahead of
// the woken one. Only Monitor.UnsafeForceUnlockFair (and RawMutex.UnlockFair)
// hands the lock to the longest waiter. NotifyOne wakes the goroutine that
// has been waiting longest; woken goroutines then reacquire the lock like
// any other caller of Lock.
package syncs

// noCopy may be embedded into structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// WaitTimeoutResult is returned by the bounded wait methods of MonitorGuard.
type WaitTimeoutResult bool

// TimedOut reports whether the wait ended because its bound elapsed rather
// than because of a notification. Either way the lock is held again when the
// wait method returns.
func (r WaitTimeoutResult) TimedOut() bool { return bool(r) }
