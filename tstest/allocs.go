// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tstest

import (
	"fmt"
	"runtime"
	"testing"
	"time"
)

// MinAllocsPerRun asserts that f can run with no more than target allocations.
// It runs f up to 1000 times or 5s, whichever happens first.
// If f has executed more than target allocations on every run, it returns a non-nil error.
//
// MinAllocsPerRun sets GOMAXPROCS to 1 during its measurement and restores
// it before returning.
func MinAllocsPerRun(t testing.TB, target uint64, f func()) error {
	t.Helper()
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	var memstats runtime.MemStats
	var lo, hi, sum uint64
	start := time.Now()
	var iters int
	for iters < 1000 && time.Since(start) < 5*time.Second {
		runtime.ReadMemStats(&memstats)
		before := memstats.Mallocs
		f()
		runtime.ReadMemStats(&memstats)
		mallocs := memstats.Mallocs - before
		if mallocs <= target {
			return nil
		}
		if lo == 0 || mallocs < lo {
			lo = mallocs
		}
		hi = max(hi, mallocs)
		sum += mallocs
		iters++
	}
	return fmt.Errorf("min allocs = %d, max allocs = %d, avg allocs/run = %f, want run with <= %d allocs", lo, hi, float64(sum)/float64(iters), target)
}
