// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

// Lockable is implemented by the lock types in this package.
type Lockable interface {
	IsLocked() bool
}

var (
	_ Lockable = (*RawMutex)(nil)
	_ Lockable = (*Monitor[int])(nil)
)

// AssertLocked panics if m is not locked.
//
// It only checks that somebody holds the lock, not that the caller does, so
// it suits functions documented as "must be called with m locked".
func AssertLocked(m Lockable) {
	if !m.IsLocked() {
		panic("syncs: mutex is not locked")
	}
}
