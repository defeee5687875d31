// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !ts_monitor_debug

package syncs

// holdTimer measures how long a guard holds its lock.
// It only does anything when built with the ts_monitor_debug build tag.
type holdTimer struct{}

func (*holdTimer) start() {}
func (*holdTimer) stop()  {}

// checkExclusive is a no-op unless built with the ts_monitor_debug tag.
func checkExclusive(*RawMutex, string) {}
