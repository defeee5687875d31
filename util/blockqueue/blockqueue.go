// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package blockqueue provides a bounded, blocking FIFO queue safe for use by
// any number of producer and consumer goroutines.
package blockqueue

import (
	"context"
	"errors"
	"time"

	"github.com/tailscale/monitor/syncs"
	"github.com/tailscale/monitor/tstime"
	"github.com/tailscale/monitor/util/ringbuffer"
)

var (
	// ErrClosed is returned when putting to a closed queue, or getting from
	// one that is closed and drained.
	ErrClosed = errors.New("blockqueue: queue closed")

	// ErrTimeout is returned by GetTimeout when no item arrived in time.
	ErrTimeout = errors.New("blockqueue: timed out")
)

type state[T any] struct {
	items  *ringbuffer.Ring[T]
	closed bool
}

func (s *state[T]) full() bool  { return !s.closed && s.items.IsFull() }
func (s *state[T]) empty() bool { return !s.closed && s.items.IsEmpty() }

// Queue is a bounded FIFO queue. Put blocks while the queue is full and Get
// blocks while it is empty.
//
// Producers and consumers share a single condition, so every state change
// notifies all waiters.
type Queue[T any] struct {
	m *syncs.Monitor[state[T]]
}

// New returns an empty queue holding at most capacity items.
// It panics if capacity is not positive.
func New[T any](capacity int) *Queue[T] {
	m := syncs.NewMonitor(state[T]{})
	m.GetMut().items = ringbuffer.New[T](capacity)
	return &Queue[T]{m: m}
}

// SetClock sets the clock used by GetTimeout. It must be called before q is
// shared.
func (q *Queue[T]) SetClock(c tstime.Clock) {
	q.m.SetClock(c)
}

// Put appends v, waiting while the queue is full.
// It returns ErrClosed if the queue is or becomes closed.
func (q *Queue[T]) Put(v T) error {
	g := q.m.Lock()
	defer g.Unlock()
	g.WaitWhile((*state[T]).full)
	return put(g, v)
}

// TryPut appends v only if there is room and the queue is open.
func (q *Queue[T]) TryPut(v T) bool {
	g := q.m.Lock()
	defer g.Unlock()
	if g.Value().full() {
		return false
	}
	return put(g, v) == nil
}

// PutContext is like Put but gives up when ctx is done.
func (q *Queue[T]) PutContext(ctx context.Context, v T) error {
	g, err := q.m.LockContext(ctx)
	if err != nil {
		return err
	}
	defer g.Unlock()
	for g.Value().full() {
		if err := g.WaitContext(ctx); err != nil {
			return err
		}
	}
	return put(g, v)
}

func put[T any](g *syncs.MonitorGuard[state[T]], v T) error {
	s := g.Value()
	if s.closed {
		return ErrClosed
	}
	s.items.Push(v)
	g.NotifyAll()
	return nil
}

// Get removes and returns the oldest item, waiting while the queue is empty.
// Once the queue is closed, Get keeps returning queued items until none
// remain and then reports false.
func (q *Queue[T]) Get() (T, bool) {
	g := q.m.Lock()
	defer g.Unlock()
	g.WaitWhile((*state[T]).empty)
	v, err := get(g)
	return v, err == nil
}

// TryGet removes and returns the oldest item if there is one.
func (q *Queue[T]) TryGet() (T, bool) {
	g := q.m.Lock()
	defer g.Unlock()
	v, err := get(g)
	return v, err == nil
}

// GetTimeout is like Get but waits at most d for an item. It returns
// ErrTimeout if none arrived, or ErrClosed if the queue is closed and empty.
func (q *Queue[T]) GetTimeout(d time.Duration) (T, error) {
	g := q.m.Lock()
	defer g.Unlock()
	if g.WaitWhileFor(d, (*state[T]).empty).TimedOut() {
		var zero T
		return zero, ErrTimeout
	}
	return get(g)
}

// GetContext is like Get but gives up when ctx is done.
func (q *Queue[T]) GetContext(ctx context.Context) (T, error) {
	var zero T
	g, err := q.m.LockContext(ctx)
	if err != nil {
		return zero, err
	}
	defer g.Unlock()
	for g.Value().empty() {
		if err := g.WaitContext(ctx); err != nil {
			return zero, err
		}
	}
	return get(g)
}

func get[T any](g *syncs.MonitorGuard[state[T]]) (T, error) {
	s := g.Value()
	v, ok := s.items.Pop()
	if !ok {
		if s.closed {
			return v, ErrClosed
		}
		return v, ErrTimeout
	}
	g.NotifyAll()
	return v, nil
}

// Close marks the queue closed and wakes every blocked caller. Later Puts
// fail; items already queued can still be drained. Close is idempotent.
func (q *Queue[T]) Close() {
	q.m.Do(func(g *syncs.MonitorGuard[state[T]]) {
		if g.Value().closed {
			return
		}
		g.Value().closed = true
		g.NotifyAll()
	})
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return syncs.WithLock(q.m, func(g *syncs.MonitorGuard[state[T]]) int {
		return g.Value().items.Len()
	})
}
