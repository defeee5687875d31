// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package logger defines Logf, the printf-style logging func passed around
// this module, and a few wrappers for it.
package logger

import (
	"container/list"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logf is a printf-like logging func. The format need not end in a newline.
// Implementations must be safe for concurrent use.
//
// Wrappers should pass the caller's format through unchanged: rate limiting
// keys on it.
type Logf func(format string, args ...any)

// Discard is a Logf that drops everything.
func Discard(string, ...any) {}

// WithPrefix returns a Logf that prepends prefix to each format before
// calling f.
func WithPrefix(f Logf, prefix string) Logf {
	return func(format string, args ...any) {
		f(prefix+format, args...)
	}
}

// StdLogger returns a *log.Logger writing each line to f, for APIs such as
// http.Server.ErrorLog that need one. Everything arrives at f as "%s", so
// wrapping f in RateLimitedFn first limits these lines as one format.
func StdLogger(f Logf) *log.Logger {
	return log.New(logfWriter{f}, "", 0)
}

type logfWriter struct{ f Logf }

func (w logfWriter) Write(p []byte) (int, error) {
	w.f("%s", p)
	return len(p), nil
}

// MONITOR_DEBUG_LOG_RATE=all turns RateLimitedFn into a no-op.
var rateLimitOff = os.Getenv("MONITOR_DEBUG_LOG_RATE") == "all"

// RateLimitedFn returns a Logf that passes each distinct format string
// through to logf at most once per every, with bursts of up to burst lines.
// The first line dropped for a format is replaced by a single
// "[RATE LIMITED]" notice; later drops are silent until that format is
// allowed through again. At most maxFormats formats are tracked; the least
// recently used one is forgotten beyond that.
func RateLimitedFn(logf Logf, every time.Duration, burst, maxFormats int) Logf {
	if rateLimitOff {
		return logf
	}
	rl := &rateLimiter{
		limit:      rate.Every(every),
		burst:      burst,
		maxFormats: maxFormats,
		byFormat:   make(map[string]*list.Element),
	}
	return func(format string, args ...any) {
		switch rl.check(format) {
		case pass:
			logf(format, args...)
		case notify:
			example := strings.TrimSpace(fmt.Sprintf(format, args...))
			logf("[RATE LIMITED] format string %q (example: %q)", format, example)
		}
	}
}

type verdict int

const (
	pass verdict = iota
	notify
	drop
)

type rateLimiter struct {
	limit      rate.Limit
	burst      int
	maxFormats int

	mu       sync.Mutex
	byFormat map[string]*list.Element // values are *formatState
	lru      list.List                // front is most recently used
}

type formatState struct {
	format   string
	lim      *rate.Limiter
	dropping bool // a notice was already logged for the current run of drops
}

func (rl *rateLimiter) check(format string) verdict {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var st *formatState
	if e, ok := rl.byFormat[format]; ok {
		rl.lru.MoveToFront(e)
		st = e.Value.(*formatState)
	} else {
		st = &formatState{format: format, lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.byFormat[format] = rl.lru.PushFront(st)
		for rl.lru.Len() > rl.maxFormats {
			old := rl.lru.Remove(rl.lru.Back()).(*formatState)
			delete(rl.byFormat, old.format)
		}
	}

	switch {
	case st.lim.Allow():
		st.dropping = false
		return pass
	case st.dropping:
		return drop
	default:
		st.dropping = true
		return notify
	}
}
