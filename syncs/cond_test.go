// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tailscale/monitor/tstest"
)

func waitCondWaiters(t *testing.T, c *cond, n int) {
	t.Helper()
	err := tstest.WaitFor(5*time.Second, func() error {
		if c.waiters() != n {
			return errors.New("not waiting yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("waiting for %d cond waiters: %v", n, err)
	}
}

func TestCondCancel(t *testing.T) {
	var mu sync.Mutex
	c := cond{L: &mu}
	cancel := make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		mu.Lock()
		defer mu.Unlock()
		errc <- c.Wait(demand{cancel: cancel})
	}()
	waitCondWaiters(t, &c, 1)
	close(cancel)
	if err := <-errc; err != errCanceled {
		t.Fatalf("Wait = %v; want %v", err, errCanceled)
	}
	if n := c.waiters(); n != 0 {
		t.Errorf("%d waiters left after cancel", n)
	}
}

func TestCondExpiry(t *testing.T) {
	var m RawMutex
	c := cond{L: &m}
	m.Lock()
	defer m.Unlock()
	timer := time.NewTimer(10 * time.Millisecond)
	defer timer.Stop()
	if err := c.Wait(demand{expiry: timer.C}); err != errCanceled {
		t.Fatalf("Wait = %v; want %v", err, errCanceled)
	}
	if !m.IsLocked() {
		t.Fatal("L not locked again after Wait")
	}
}

func TestCondSignalOrder(t *testing.T) {
	var mu sync.Mutex
	c := cond{L: &mu}
	woke := make(chan int, 3)
	for i := range 3 {
		go func() {
			mu.Lock()
			defer mu.Unlock()
			if err := c.Wait(demand{}); err != nil {
				t.Errorf("Wait = %v", err)
			}
			woke <- i
		}()
		waitCondWaiters(t, &c, i+1)
	}

	for want := range 2 {
		mu.Lock()
		c.Signal()
		mu.Unlock()
		if got := <-woke; got != want {
			t.Errorf("Signal woke waiter %d; want %d", got, want)
		}
	}
	mu.Lock()
	c.Broadcast()
	mu.Unlock()
	if got := <-woke; got != 2 {
		t.Errorf("Broadcast woke waiter %d; want 2", got)
	}
	if n := c.waiters(); n != 0 {
		t.Errorf("%d waiters left", n)
	}
}
