// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package tstime defines the clock abstraction used by the blocking
// primitives in this module, so that their timeouts can be driven by a
// simulated clock in tests.
package tstime

import "time"

// Clock offers a subset of the functionality from the std/time package.
// Normally, applications will use the StdClock implementation that calls the
// appropriate std/time exported funcs. The advantage of using Clock is that
// tests can substitute a different implementation, allowing the test to
// control time precisely, something required for certain types of tests to
// be possible at all, speeds up execution by not needing to sleep, and can
// dramatically reduce the risk of flakes due to tests executing too slowly or
// quickly.
type Clock interface {
	// Now returns the current time, as in time.Now.
	Now() time.Time
	// NewTimer returns a timer whose notion of the current time is controlled
	// by this Clock. It follows the semantics of time.NewTimer as closely as
	// possible but is adapted to return an interface, so the channel needs to
	// be returned as well.
	NewTimer(d time.Duration) (TimerController, <-chan time.Time)
	// Since returns the time elapsed since t, as in time.Since.
	Since(t time.Time) time.Duration
}

// TimerController offers the receivers of a time.Timer as an interface so
// any implementation of Clock can return a timer.
type TimerController interface {
	// Reset follows the same semantics as with time.Timer.Reset.
	Reset(d time.Duration) bool
	// Stop follows the same semantics as with time.Timer.Stop.
	Stop() bool
}

// StdClock is a simple implementation of Clock using the relevant funcs in
// the std/time package.
type StdClock struct{}

// Now calls time.Now.
func (StdClock) Now() time.Time {
	return time.Now()
}

// NewTimer calls time.NewTimer. As an interface does not allow for struct
// members and other packages cannot add receivers to another package, the
// channel is also returned because it would be otherwise inaccessible.
func (StdClock) NewTimer(d time.Duration) (TimerController, <-chan time.Time) {
	t := time.NewTimer(d)
	return t, t.C
}

// Since calls time.Since.
func (StdClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Until returns how long remains until deadline according to c, clamped to
// zero for deadlines that have already passed.
func Until(c Clock, deadline time.Time) time.Duration {
	d := deadline.Sub(c.Now())
	if d < 0 {
		return 0
	}
	return d
}
