// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "monitorbench"

type metrics struct {
	registry *prometheus.Registry
	lockWait prometheus.Histogram
	timeouts prometheus.Counter
	wakeups  prometheus.Counter
	ops      *prometheus.CounterVec // by scenario
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring a monitor lock.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "acquire_timeouts_total",
			Help:      "Bounded lock acquisitions that gave up.",
		}),
		wakeups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "wakeups_total",
			Help:      "Returns from a condition wait.",
		}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ops_total",
			Help:      "Operations completed, by scenario.",
		}, []string{"scenario"}),
	}
	m.registry.MustRegister(
		m.lockWait,
		m.timeouts,
		m.wakeups,
		m.ops,
		collectors.NewGoCollector(),
	)
	return m
}

// observeWait records the time since start as one lock acquisition.
func (m *metrics) observeWait(start time.Time) {
	m.lockWait.Observe(time.Since(start).Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
