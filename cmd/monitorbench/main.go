// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Command monitorbench runs stress scenarios against syncs.Monitor and
// checks their results.
//
// Usage:
//
//	monitorbench [-metrics-addr=:9090] [-json-log] [-v] <counter|broadcast|queue|contend> [flags]
//
// Every flag can also be set from the environment with a MONITORBENCH_
// prefix, e.g. MONITORBENCH_METRICS_ADDR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailscale/monitor/types/logger"
	"go.uber.org/zap"
)

const envPrefix = "MONITORBENCH"

var rootArgs struct {
	metricsAddr string
	jsonLog     bool
	verbose     bool
}

var counterArgs struct {
	goroutines int
	iters      int
}

var broadcastArgs struct {
	waiters int
}

var queueArgs struct {
	producers int
	consumers int
	items     int
	capacity  int
}

var contendArgs struct {
	contenders int
	hold       time.Duration
	timeout    time.Duration
}

func main() {
	rootFS := flag.NewFlagSet("monitorbench", flag.ExitOnError)
	rootFS.StringVar(&rootArgs.metricsAddr, "metrics-addr", "", "if non-empty, serve Prometheus metrics on this address at /metrics")
	rootFS.BoolVar(&rootArgs.jsonLog, "json-log", false, "log JSON lines via zap instead of plain text")
	rootFS.BoolVar(&rootArgs.verbose, "v", false, "log per-worker progress")

	opts := []ff.Option{ff.WithEnvVarPrefix(envPrefix)}
	root := &ffcli.Command{
		Name:       "monitorbench",
		ShortUsage: "monitorbench [flags] <subcommand> [flags]",
		ShortHelp:  "Stress and check syncs.Monitor",
		FlagSet:    rootFS,
		Options:    opts,
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			{
				Name:       "counter",
				ShortUsage: "monitorbench counter [-goroutines=N] [-iters=N]",
				ShortHelp:  "Increment a shared counter from many goroutines",
				FlagSet:    counterFlags(),
				Options:    opts,
				Exec: run("counter", func(ctx context.Context, b *bench) error {
					return b.runCounter(ctx, counterArgs.goroutines, counterArgs.iters)
				}),
			},
			{
				Name:       "broadcast",
				ShortUsage: "monitorbench broadcast [-waiters=N]",
				ShortHelp:  "Release many waiters with a single NotifyAll",
				FlagSet:    broadcastFlags(),
				Options:    opts,
				Exec: run("broadcast", func(ctx context.Context, b *bench) error {
					return b.runBroadcast(ctx, broadcastArgs.waiters)
				}),
			},
			{
				Name:       "queue",
				ShortUsage: "monitorbench queue [-producers=N] [-consumers=N] [-items=N] [-capacity=N]",
				ShortHelp:  "Pass items through a bounded blocking queue",
				FlagSet:    queueFlags(),
				Options:    opts,
				Exec: run("queue", func(ctx context.Context, b *bench) error {
					return b.runQueue(ctx, queueArgs.producers, queueArgs.consumers, queueArgs.items, queueArgs.capacity)
				}),
			},
			{
				Name:       "contend",
				ShortUsage: "monitorbench contend [-contenders=N] [-hold=D] [-timeout=D]",
				ShortHelp:  "Measure bounded lock acquisition against a long holder",
				FlagSet:    contendFlags(),
				Options:    opts,
				Exec: run("contend", func(ctx context.Context, b *bench) error {
					st, err := b.runContend(ctx, contendArgs.contenders, contendArgs.hold, contendArgs.timeout)
					if err != nil {
						return err
					}
					b.logf("acquired=%d timed_out=%d max_overshoot=%v", st.acquired, st.timedOut, st.maxOvershoot)
					return nil
				}),
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := root.ParseAndRun(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "monitorbench: %v\n", err)
		os.Exit(1)
	}
}

func counterFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("counter", flag.ExitOnError)
	fs.IntVar(&counterArgs.goroutines, "goroutines", 8, "number of incrementing goroutines")
	fs.IntVar(&counterArgs.iters, "iters", 10000, "increments per goroutine")
	return fs
}

func broadcastFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("broadcast", flag.ExitOnError)
	fs.IntVar(&broadcastArgs.waiters, "waiters", 5, "number of waiting goroutines")
	return fs
}

func queueFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	fs.IntVar(&queueArgs.producers, "producers", 4, "number of producer goroutines")
	fs.IntVar(&queueArgs.consumers, "consumers", 4, "number of consumer goroutines")
	fs.IntVar(&queueArgs.items, "items", 10000, "items sent by each producer")
	fs.IntVar(&queueArgs.capacity, "capacity", 16, "queue capacity")
	return fs
}

func contendFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("contend", flag.ExitOnError)
	fs.IntVar(&contendArgs.contenders, "contenders", 4, "number of goroutines calling TryLockFor")
	fs.DurationVar(&contendArgs.hold, "hold", 500*time.Millisecond, "how long the holder keeps the lock")
	fs.DurationVar(&contendArgs.timeout, "timeout", 50*time.Millisecond, "TryLockFor bound used by contenders")
	return fs
}

// run returns an ffcli Exec func that sets up logging and metrics according
// to the root flags and then runs the named scenario.
func run(scenario string, f func(context.Context, *bench) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %q", args)
		}
		logf, flush, err := newLogf(rootArgs.jsonLog)
		if err != nil {
			return err
		}
		defer flush()

		b := newBench(logger.WithPrefix(logf, scenario+": "), newMetrics())
		if rootArgs.verbose {
			b.vlogf = logger.RateLimitedFn(b.logf, time.Second, 10, 100)
		}
		if rootArgs.metricsAddr != "" {
			stop, err := serveMetrics(rootArgs.metricsAddr, b.metrics.handler(), logf)
			if err != nil {
				return err
			}
			defer stop()
		}

		start := time.Now()
		if err := f(ctx, b); err != nil {
			return fmt.Errorf("%s: %w", scenario, err)
		}
		b.logf("ok in %v", time.Since(start).Round(time.Millisecond))
		return nil
	}
}

// newLogf returns the process logger and a func to flush it.
func newLogf(jsonLog bool) (_ logger.Logf, flush func(), _ error) {
	if !jsonLog {
		return log.Printf, func() {}, nil
	}
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("creating zap logger: %w", err)
	}
	return zl.Sugar().Infof, func() { zl.Sync() }, nil
}

func serveMetrics(addr string, h http.Handler, logf logger.Logf) (stop func(), _ error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Handler:  mux,
		ErrorLog: logger.StdLogger(logf),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logf("metrics server: %v", err)
		}
	}()
	logf("serving metrics on http://%v/metrics", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
