// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/tailscale/monitor/syncs"
	"github.com/tailscale/monitor/types/logger"
	"github.com/tailscale/monitor/util/blockqueue"
)

// bench is the environment a scenario runs in.
type bench struct {
	logf    logger.Logf
	vlogf   logger.Logf // per-worker progress; Discard unless -v
	metrics *metrics
}

func newBench(logf logger.Logf, m *metrics) *bench {
	return &bench{
		logf:    logf,
		vlogf:   logger.Discard,
		metrics: m,
	}
}

// runCounter has goroutines each increment a shared counter iters times and
// checks that no increment was lost.
func (b *bench) runCounter(ctx context.Context, goroutines, iters int) error {
	m := syncs.NewMonitor(0)
	ops := b.metrics.ops.WithLabelValues("counter")

	var g taskgroup.Group
	for w := range goroutines {
		g.Go(func() error {
			for range iters {
				if err := ctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				gd := m.Lock()
				b.metrics.observeWait(start)
				*gd.Value()++
				gd.Unlock()
				ops.Inc()
			}
			b.vlogf("worker %d done", w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	got, want := m.IntoInner(), goroutines*iters
	if got != want {
		return fmt.Errorf("final count %d, want %d", got, want)
	}
	b.logf("%d goroutines x %d increments = %d", goroutines, iters, got)
	return nil
}

type broadcastState struct {
	ready     bool
	waiting   int // goroutines that have started waiting
	resumed   int
	inside    int
	maxInside int
}

// runBroadcast parks waiters on a condition, releases them all with a
// single NotifyAll and checks that each resumed, one at a time.
func (b *bench) runBroadcast(ctx context.Context, waiters int) error {
	m := syncs.NewMonitor(broadcastState{})
	ops := b.metrics.ops.WithLabelValues("broadcast")

	var g taskgroup.Group
	for w := range waiters {
		g.Go(func() error {
			start := time.Now()
			gd, err := m.LockContext(ctx)
			if err != nil {
				return err
			}
			defer gd.Unlock()
			b.metrics.observeWait(start)

			s := gd.Value()
			s.waiting++
			gd.NotifyAll()
			for !s.ready {
				if err := gd.WaitContext(ctx); err != nil {
					return err
				}
				b.metrics.wakeups.Inc()
			}
			s.inside++
			s.maxInside = max(s.maxInside, s.inside)
			s.resumed++
			s.inside--
			ops.Inc()
			b.vlogf("waiter %d resumed", w)
			return nil
		})
	}

	err := func() error {
		gd, err := m.LockContext(ctx)
		if err != nil {
			return err
		}
		defer gd.Unlock()
		for gd.Value().waiting < waiters {
			if err := gd.WaitContext(ctx); err != nil {
				return err
			}
		}
		gd.Value().ready = true
		gd.NotifyAll()
		return nil
	}()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return err
	}

	s := m.IntoInner()
	if s.resumed != waiters {
		return fmt.Errorf("%d of %d waiters resumed", s.resumed, waiters)
	}
	if s.maxInside != 1 {
		return fmt.Errorf("%d waiters were inside the monitor at once", s.maxInside)
	}
	b.logf("%d waiters released by one broadcast", waiters)
	return nil
}

// runQueue sends items from each producer through a bounded queue and
// checks that consumers received every item exactly once.
func (b *bench) runQueue(ctx context.Context, producers, consumers, items, capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	q := blockqueue.New[int](capacity)
	ops := b.metrics.ops.WithLabelValues("queue")

	var prod taskgroup.Group
	for p := range producers {
		prod.Go(func() error {
			for i := range items {
				if err := q.PutContext(ctx, p*items+i); err != nil {
					return fmt.Errorf("producer %d: %w", p, err)
				}
			}
			b.vlogf("producer %d done", p)
			return nil
		})
	}

	received := make([][]int, consumers)
	var cons taskgroup.Group
	for c := range consumers {
		cons.Go(func() error {
			for {
				v, err := q.GetContext(ctx)
				if errors.Is(err, blockqueue.ErrClosed) {
					b.vlogf("consumer %d got %d items", c, len(received[c]))
					return nil
				}
				if err != nil {
					return fmt.Errorf("consumer %d: %w", c, err)
				}
				received[c] = append(received[c], v)
				ops.Inc()
			}
		})
	}

	perr := prod.Wait()
	q.Close()
	if cerr := cons.Wait(); perr == nil {
		perr = cerr
	}
	if perr != nil {
		return perr
	}

	seen := make([]int, producers*items)
	for _, vs := range received {
		for _, v := range vs {
			seen[v]++
		}
	}
	for v, n := range seen {
		if n != 1 {
			return fmt.Errorf("item %d received %d times", v, n)
		}
	}
	b.logf("%d items through capacity %d", len(seen), capacity)
	return nil
}

type contendStats struct {
	acquired     int
	timedOut     int
	maxOvershoot time.Duration // how far past its bound a failed TryLockFor returned
}

// runContend holds a monitor's lock for hold while contenders try to take it
// with TryLockFor(timeout).
func (b *bench) runContend(ctx context.Context, contenders int, hold, timeout time.Duration) (contendStats, error) {
	m := syncs.NewMonitor(contendStats{})
	ops := b.metrics.ops.WithLabelValues("contend")

	held := make(chan struct{})
	var g taskgroup.Group
	g.Go(func() error {
		gd := m.Lock()
		defer gd.Unlock()
		close(held)
		select {
		case <-time.After(hold):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	for c := range contenders {
		g.Go(func() error {
			<-held
			start := time.Now()
			gd, ok := m.TryLockFor(timeout)
			elapsed := time.Since(start)
			ops.Inc()
			if ok {
				b.metrics.observeWait(start)
				gd.Value().acquired++
				gd.Unlock()
				b.vlogf("contender %d acquired after %v", c, elapsed)
				return nil
			}
			b.metrics.timeouts.Inc()
			b.vlogf("contender %d timed out after %v", c, elapsed)
			syncs.WithLock(m, func(gd *syncs.MonitorGuard[contendStats]) struct{} {
				s := gd.Value()
				s.timedOut++
				s.maxOvershoot = max(s.maxOvershoot, elapsed-timeout)
				return struct{}{}
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return contendStats{}, err
	}
	return m.IntoInner(), nil
}
