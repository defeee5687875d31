// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build ts_monitor_debug

package syncs

import (
	"log"
	"time"

	"github.com/tailscale/monitor/types/logger"
)

// DebugSlowHold is how long a guard may hold its lock before DebugLogf
// reports it.
const DebugSlowHold = time.Second

// DebugLogf receives reports of guards that held their lock for longer than
// DebugSlowHold. Tests may replace it.
var DebugLogf logger.Logf = logger.RateLimitedFn(log.Printf, time.Minute, 10, 100)

type holdTimer struct {
	at time.Time
}

func (h *holdTimer) start() {
	h.at = time.Now()
}

func (h *holdTimer) stop() {
	if h.at.IsZero() {
		return
	}
	if d := time.Since(h.at); d > DebugSlowHold {
		DebugLogf("syncs: monitor lock held for %v", d.Round(time.Millisecond))
	}
	h.at = time.Time{}
}

func checkExclusive(m *RawMutex, op string) {
	if m.IsLocked() {
		panic("syncs: " + op + " called while the monitor is locked")
	}
}
