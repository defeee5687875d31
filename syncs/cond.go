// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// errCanceled is returned by cond.Wait when the wait ended because its
// demand was canceled rather than because of a signal.
var errCanceled = errors.New("syncs: wait canceled")

// demand bounds a cond.Wait. A nil channel never fires.
type demand struct {
	expiry <-chan time.Time // a timer's channel
	cancel <-chan struct{}  // typically ctx.Done()
}

// cond is a condition variable whose waits can be canceled, which
// sync.Cond cannot do. L must be held when calling Wait, Signal or
// Broadcast; for a Monitor it is the Monitor's own RawMutex.
type cond struct {
	L    sync.Locker
	list waitList
}

// Wait unlocks c.L and suspends the calling goroutine until Signal or
// Broadcast wakes it, or d is canceled, in which case it returns
// errCanceled. c.L is locked again before Wait returns.
//
// The ticket is taken while c.L is still held, so a signaller that locks
// c.L afterwards always finds it.
func (c *cond) Wait(d demand) error {
	t := c.list.add()
	c.L.Unlock()
	var err error
	if !c.list.wait(t, d) {
		err = errCanceled
	}
	c.L.Lock()
	return err
}

// Signal wakes the goroutine that has been waiting longest, if any.
func (c *cond) Signal() { c.list.notify() }

// Broadcast wakes all waiting goroutines.
func (c *cond) Broadcast() { c.list.notifyAll() }

// waiters returns the number of goroutines in Wait.
func (c *cond) waiters() int { return c.list.count() }

// waitList is a FIFO of wait tickets.
type waitList struct {
	mu sync.Mutex
	l  list.List // of *ticket; front was added first
}

type ticket struct {
	ready    chan struct{} // closed on notification
	notified bool
	e        *list.Element
}

func (wl *waitList) add() *ticket {
	t := &ticket{ready: make(chan struct{})}
	wl.mu.Lock()
	t.e = wl.l.PushBack(t)
	wl.mu.Unlock()
	return t
}

// wait blocks until t is notified or d fires. It reports whether t was
// notified; a notification that races with d still counts, so none is lost.
func (wl *waitList) wait(t *ticket, d demand) bool {
	select {
	case <-t.ready:
	case <-d.expiry:
	case <-d.cancel:
	}
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if !t.notified {
		wl.l.Remove(t.e)
	}
	return t.notified
}

func (wl *waitList) notify() {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if e := wl.l.Front(); e != nil {
		wl.wakeLocked(e)
	}
}

func (wl *waitList) notifyAll() {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	for e := wl.l.Front(); e != nil; e = wl.l.Front() {
		wl.wakeLocked(e)
	}
}

func (wl *waitList) wakeLocked(e *list.Element) {
	t := wl.l.Remove(e).(*ticket)
	t.notified = true
	close(t.ready)
}

func (wl *waitList) count() int {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return wl.l.Len()
}
