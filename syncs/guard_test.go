// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tailscale/monitor/tstest"
)

func wantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		recover()
	}()
	fn()
	t.Fatal("failed to panic")
}

func TestWaitNotifyOne(t *testing.T) {
	tstest.ResourceCheck(t)

	m := NewMonitor(0)
	locked := make(chan struct{})
	observed := make(chan int)
	go func() {
		g := m.Lock()
		defer g.Unlock()
		close(locked)
		g.Wait()
		observed <- g.Get()
	}()

	<-locked
	// Lock only succeeds once the waiter has released the lock inside Wait,
	// by which point it is registered for notification.
	g := m.Lock()
	g.Set(42)
	g.NotifyOne()
	g.Unlock()

	select {
	case got := <-observed:
		if got != 42 {
			t.Errorf("waiter observed %d; want 42", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestNotifyWithoutWaiters(t *testing.T) {
	m := NewMonitor(0)
	g := m.Lock()
	defer g.Unlock()
	g.NotifyOne()
	g.NotifyAll()
	if !m.IsLocked() {
		t.Fatal("notify released the lock")
	}
}

func TestNotifyOneWakesOldestWaiter(t *testing.T) {
	m := NewMonitor([]int{})
	woke := make(chan int, 2)
	for i := range 2 {
		go func() {
			g := m.Lock()
			defer g.Unlock()
			g.Wait()
			woke <- i
		}()
		// Wait for waiter i to register before starting the next one.
		if err := tstest.WaitFor(5*time.Second, func() error {
			if m.cv.waiters() != i+1 {
				return errors.New("not waiting yet")
			}
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	for want := range 2 {
		m.Do(func(g *MonitorGuard[[]int]) { g.NotifyOne() })
		select {
		case got := <-woke:
			if got != want {
				t.Errorf("NotifyOne woke waiter %d; want %d", got, want)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("no waiter woke")
		}
	}
}

func TestWaitForTimesOut(t *testing.T) {
	m := NewMonitor(0)
	g := m.Lock()
	defer g.Unlock()

	const d = 50 * time.Millisecond
	start := time.Now()
	res := g.WaitFor(d)
	elapsed := time.Since(start)
	if !res.TimedOut() {
		t.Fatal("WaitFor without notification did not time out")
	}
	if elapsed < d {
		t.Errorf("WaitFor returned after %v; want >= %v", elapsed, d)
	}
	if !m.IsLocked() {
		t.Fatal("lock not held after WaitFor returned")
	}
	other := make(chan bool)
	go func() {
		_, ok := m.TryLock()
		other <- ok
	}()
	if <-other {
		t.Fatal("another goroutine acquired the lock after WaitFor returned")
	}
	if n := m.cv.waiters(); n != 0 {
		t.Errorf("%d condvar waiters left after timeout", n)
	}
}

func TestWaitForNonPositive(t *testing.T) {
	m := NewMonitor(0)
	g := m.Lock()
	defer g.Unlock()
	if !g.WaitFor(0).TimedOut() || !g.WaitFor(-time.Second).TimedOut() {
		t.Fatal("non-positive WaitFor did not time out")
	}
}

func TestWaitForFakeClock(t *testing.T) {
	clk := tstest.NewClock(tstest.ClockOpts{Start: clockStart})
	m := NewMonitor(0)
	m.SetClock(clk)

	res := make(chan WaitTimeoutResult, 1)
	go func() {
		g := m.Lock()
		defer g.Unlock()
		res <- g.WaitFor(time.Hour)
	}()
	if !clk.WaitForTimers(1, 5*time.Second) {
		t.Fatal("WaitFor never started its timer")
	}
	clk.Advance(time.Hour)
	if r := <-res; !r.TimedOut() {
		t.Fatal("WaitFor did not time out after its bound elapsed")
	}
	if m.IsLocked() {
		t.Fatal("monitor still locked after waiter returned")
	}
}

func TestWaitUntilNotified(t *testing.T) {
	clk := tstest.NewClock(tstest.ClockOpts{Start: clockStart})
	m := NewMonitor(false)
	m.SetClock(clk)

	res := make(chan WaitTimeoutResult, 1)
	go func() {
		g := m.Lock()
		defer g.Unlock()
		res <- g.WaitUntil(clockStart.Add(time.Minute))
	}()
	if !clk.WaitForTimers(1, 5*time.Second) {
		t.Fatal("WaitUntil never started its timer")
	}
	m.Do(func(g *MonitorGuard[bool]) {
		g.Set(true)
		g.NotifyAll()
	})
	if r := <-res; r.TimedOut() {
		t.Fatal("notified WaitUntil reported a timeout")
	}
	if n := clk.PendingTimers(); n != 0 {
		t.Errorf("%d timers left pending", n)
	}
}

func TestWaitContext(t *testing.T) {
	m := NewMonitor(0)
	g := m.Lock()
	defer g.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitContext = %v; want %v", err, context.DeadlineExceeded)
	}
	if !m.IsLocked() {
		t.Fatal("lock not held after WaitContext returned")
	}
	// Already done: returns immediately, lock untouched.
	if err := g.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second WaitContext = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		og := m.Lock()
		defer og.Unlock()
		done <- og.WaitContext(context.Background())
	}()
	// Release our lock so the goroutine can wait, then notify it.
	for {
		g.WaitFor(time.Millisecond)
		if m.cv.waiters() == 1 {
			break
		}
	}
	g.NotifyOne()
	g.Unlock()
	if err := <-done; err != nil {
		t.Fatalf("notified WaitContext = %v", err)
	}
}

func TestWaitWhile(t *testing.T) {
	tstest.ResourceCheck(t)

	m := NewMonitor(0)
	done := make(chan int)
	go func() {
		g := m.Lock()
		defer g.Unlock()
		g.WaitWhile(func(n *int) bool { return *n < 3 })
		done <- g.Get()
	}()
	for range 3 {
		m.Do(func(g *MonitorGuard[int]) {
			*g.Value()++
			g.NotifyAll()
		})
	}
	if got := <-done; got != 3 {
		t.Errorf("WaitWhile returned with value %d; want 3", got)
	}
}

func TestWaitWhileFor(t *testing.T) {
	m := NewMonitor(0)
	g := m.Lock()
	defer g.Unlock()

	if r := g.WaitWhileFor(time.Hour, func(n *int) bool { return *n != 0 }); r.TimedOut() {
		t.Error("WaitWhileFor with false condition timed out")
	}
	if r := g.WaitWhileFor(20*time.Millisecond, func(n *int) bool { return *n == 0 }); !r.TimedOut() {
		t.Error("WaitWhileFor with condition never changing did not time out")
	}

	go m.Do(func(g *MonitorGuard[int]) {
		g.Set(1)
		g.NotifyAll()
	})
	if r := g.WaitWhileFor(10*time.Second, func(n *int) bool { return *n == 0 }); r.TimedOut() {
		t.Error("WaitWhileFor timed out despite the condition becoming false")
	}
}

func TestGuardUseAfterUnlockPanics(t *testing.T) {
	m := NewMonitor(0)
	g := m.Lock()
	g.Unlock()
	g.Unlock() // idempotent

	wantPanic(t, func() { g.Value() })
	wantPanic(t, func() { g.Get() })
	wantPanic(t, func() { g.Set(1) })
	wantPanic(t, func() { g.NotifyOne() })
	wantPanic(t, func() { g.NotifyAll() })
	wantPanic(t, func() { g.Wait() })
	wantPanic(t, func() { g.WaitFor(time.Second) })
	if m.IsLocked() {
		t.Fatal("released guard left the monitor locked")
	}
}

func TestWaitTimeoutNotificationRace(t *testing.T) {
	// Whatever the interleaving between a short timeout and a notification,
	// a waiter must always end deregistered with the lock held.
	m := NewMonitor(0)
	for range 200 {
		res := make(chan WaitTimeoutResult, 1)
		go func() {
			g := m.Lock()
			defer g.Unlock()
			res <- g.WaitFor(time.Microsecond)
		}()
		m.Do(func(g *MonitorGuard[int]) { g.NotifyOne() })
		<-res
		if n := m.cv.waiters(); n != 0 {
			t.Fatalf("%d condvar waiters left registered", n)
		}
	}
	if m.IsLocked() {
		t.Fatal("monitor left locked")
	}
}
