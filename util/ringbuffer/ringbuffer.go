// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package ringbuffer provides a generic fixed-capacity FIFO ring buffer.
package ringbuffer

import "iter"

// Ring is a circular FIFO buffer with a fixed capacity.
//
// It is not safe for concurrent use; callers provide their own locking.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int // number of elements in the buffer
}

// New returns an empty Ring that holds at most capacity elements.
// It panics if capacity is not positive.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ringbuffer: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v as the newest element. It reports false, leaving the
// buffer unchanged, if the buffer is full.
func (r *Ring[T]) Push(v T) bool {
	if r.IsFull() {
		return false
	}
	r.buf[(r.head+r.count)%len(r.buf)] = v
	r.count++
	return true
}

// Pop removes and returns the oldest element.
// It returns the zero value and false if the buffer is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero // clear reference for GC
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return v, true
}

// Peek returns the oldest element without removing it.
// It returns the zero value and false if the buffer is empty.
func (r *Ring[T]) Peek() (T, bool) {
	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.buf[r.head], true
}

// Len returns the number of elements in the buffer.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the capacity the buffer was created with.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// IsEmpty reports whether the buffer contains no elements.
func (r *Ring[T]) IsEmpty() bool { return r.count == 0 }

// IsFull reports whether the buffer is at capacity.
func (r *Ring[T]) IsFull() bool { return r.count == len(r.buf) }

// Clear removes all elements.
func (r *Ring[T]) Clear() {
	clear(r.buf)
	r.head = 0
	r.count = 0
}

// All returns an iterator over the elements from oldest to newest.
// The buffer must not be modified during iteration.
func (r *Ring[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range r.count {
			if !yield(r.buf[(r.head+i)%len(r.buf)]) {
				return
			}
		}
	}
}
