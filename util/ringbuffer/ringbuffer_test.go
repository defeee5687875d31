// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package ringbuffer

import (
	"slices"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	c := qt.New(t)
	r := New[int](5)
	c.Assert(r.Cap(), qt.Equals, 5)
	c.Assert(r.Len(), qt.Equals, 0)
	c.Assert(r.IsEmpty(), qt.IsTrue)
	c.Assert(r.IsFull(), qt.IsFalse)
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	c := qt.New(t)
	c.Assert(func() { New[int](0) }, qt.PanicMatches, "ringbuffer: capacity must be positive")
	c.Assert(func() { New[int](-1) }, qt.PanicMatches, "ringbuffer: capacity must be positive")
}

func TestPushUntilFull(t *testing.T) {
	c := qt.New(t)
	r := New[int](3)
	for i := range 3 {
		c.Check(r.Push(i+1), qt.IsTrue)
	}
	c.Assert(r.IsFull(), qt.IsTrue)
	c.Assert(r.Push(4), qt.IsFalse)
	c.Assert(slices.Collect(r.All()), qt.DeepEquals, []int{1, 2, 3})
}

func TestPopPeek(t *testing.T) {
	c := qt.New(t)
	r := New[string](2)

	_, ok := r.Pop()
	c.Assert(ok, qt.IsFalse)
	_, ok = r.Peek()
	c.Assert(ok, qt.IsFalse)

	r.Push("a")
	r.Push("b")
	v, ok := r.Peek()
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "a")
	c.Assert(r.Len(), qt.Equals, 2)

	v, _ = r.Pop()
	c.Assert(v, qt.Equals, "a")
	v, _ = r.Pop()
	c.Assert(v, qt.Equals, "b")
	c.Assert(r.IsEmpty(), qt.IsTrue)
}

func TestWrapAround(t *testing.T) {
	r := New[int](3)
	var got []int
	next := 0
	for range 10 {
		for r.Push(next) {
			next++
		}
		v, _ := r.Pop()
		got = append(got, v)
	}
	for v := range r.All() {
		got = append(got, v)
	}
	want := make([]int, next)
	for i := range want {
		want[i] = i
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("FIFO order mismatch (-want +got):\n%s", d)
	}
}

func TestClear(t *testing.T) {
	c := qt.New(t)
	r := New[*int](2)
	x := 1
	r.Push(&x)
	r.Push(&x)
	r.Clear()
	c.Assert(r.Len(), qt.Equals, 0)
	c.Assert(r.buf[0], qt.IsNil)
	c.Assert(r.Push(&x), qt.IsTrue)
}

func TestAllStopsEarly(t *testing.T) {
	r := New[int](4)
	for i := range 4 {
		r.Push(i)
	}
	var got []int
	for v := range r.All() {
		if v == 2 {
			break
		}
		got = append(got, v)
	}
	if d := cmp.Diff([]int{0, 1}, got); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}
