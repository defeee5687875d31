// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tstest

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ResourceCheck fails tb if, once the test is over, more goroutines are
// running than when ResourceCheck was called. A waiter left parked in a lock
// or a wait shows up here. The check is skipped if tb already failed.
//
// It cannot be used from a parallel test: other tests' goroutines would be
// counted. tb.Setenv enforces that by panicking.
func ResourceCheck(tb testing.TB) {
	tb.Helper()
	tb.Setenv("MONITOR_CHECKING_RESOURCES", "1")

	before := goroutineStacks()
	tb.Cleanup(func() {
		if tb.Failed() {
			return
		}
		var after []string
		err := WaitFor(3*time.Second, func() error {
			after = goroutineStacks()
			if len(after) > len(before) {
				return fmt.Errorf("%d goroutines, started with %d", len(after), len(before))
			}
			return nil
		})
		if err == nil {
			return
		}
		// Goroutine order is arbitrary, so diff the stacks as a multiset.
		diff := cmp.Diff(before, after, cmpopts.SortSlices(func(a, b string) bool { return a < b }))
		tb.Errorf("leaked goroutines: %v; stacks (-before +after):\n%s", err, diff)
	})
}

// goroutineStacks returns one entry per goroutine, each its stack trace with
// the header line (which carries the goroutine ID and state) dropped.
func goroutineStacks() []string {
	buf := make([]byte, 1<<16)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
	}
	var stacks []string
	for g := range bytes.SplitSeq(buf, []byte("\n\n")) {
		_, body, _ := strings.Cut(string(g), "\n")
		stacks = append(stacks, body)
	}
	return stacks
}
