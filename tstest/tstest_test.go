// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tstest

import (
	"errors"
	"testing"
	"time"
)

func TestReplace(t *testing.T) {
	before := "before"
	done := false
	t.Run("replace", func(t *testing.T) {
		Replace(t, &before, "after")
		if before != "after" {
			t.Errorf("before = %q; want %q", before, "after")
		}
		done = true
	})
	if !done {
		t.Fatal("subtest didn't run")
	}
	if before != "before" {
		t.Errorf("before = %q; want %q", before, "before")
	}
}

func TestWaitFor(t *testing.T) {
	n := 0
	err := WaitFor(5*time.Second, func() error {
		n++
		if n < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WaitFor = %v; want nil", err)
	}
	if n != 3 {
		t.Errorf("try called %d times; want 3", n)
	}

	errNever := errors.New("never")
	if err := WaitFor(20*time.Millisecond, func() error { return errNever }); err != errNever {
		t.Errorf("WaitFor = %v; want %v", err, errNever)
	}
}

func TestGoroutineStacks(t *testing.T) {
	before := len(goroutineStacks())
	stop := make(chan struct{})
	parked := make(chan struct{})
	go func() {
		close(parked)
		<-stop
	}()
	<-parked
	if got := len(goroutineStacks()); got != before+1 {
		t.Errorf("goroutineStacks len = %d; want %d", got, before+1)
	}
	close(stop)

	// A goroutine that exits is no longer counted.
	if err := WaitFor(5*time.Second, func() error {
		if n := len(goroutineStacks()); n != before {
			return errors.New("goroutine still running")
		}
		return nil
	}); err != nil {
		t.Error(err)
	}
}
