// Package ratelimit implements per-caller request limiting.
//
// The Limiter interface is satisfied by the in-process FixedWindow below and
// by the Redis-backed limiter in the cache package, which shares counters
// across replicas.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Default limits applied to non-admin callers.
const (
	DefaultLimit  = 20
	DefaultWindow = 60 * time.Second
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window resets,
// rounded up to whole seconds and never less than one second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

type window struct {
	start time.Time
	count int
}

// FixedWindow is an in-memory fixed-window limiter. The first request from a
// key opens a window of the configured length; up to limit requests are
// allowed inside it and the counter restarts once it has elapsed.
type FixedWindow struct {
	limit  int
	window time.Duration
	clock  Clock

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the limiter's time source.
func WithClock(c Clock) Option {
	return func(f *FixedWindow) {
		f.clock = c
	}
}

// NewFixedWindow creates a limiter allowing limit requests per window.
// Non-positive arguments fall back to DefaultLimit and DefaultWindow.
func NewFixedWindow(limit int, win time.Duration, opts ...Option) *FixedWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if win <= 0 {
		win = DefaultWindow
	}
	f := &FixedWindow{
		limit:   limit,
		window:  win,
		clock:   SystemClock(),
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.lastSweep = f.clock.Now()
	return f
}

// Allow records a request for key and reports whether it is within the limit.
// Rejected requests do not extend the window.
func (f *FixedWindow) Allow(_ context.Context, key string) (Result, error) {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sweepLocked(now)

	w, ok := f.windows[key]
	if !ok || !now.Before(w.start.Add(f.window)) {
		w = &window{start: now}
		f.windows[key] = w
	}

	res := Result{
		Limit:   f.limit,
		ResetAt: w.start.Add(f.window),
	}

	if w.count >= f.limit {
		return res, nil
	}

	w.count++
	res.Allowed = true
	res.Remaining = f.limit - w.count
	return res, nil
}

// Len returns the number of tracked keys.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

// sweepLocked drops expired windows at most once per window length.
func (f *FixedWindow) sweepLocked(now time.Time) {
	if now.Sub(f.lastSweep) < f.window {
		return
	}
	for k, w := range f.windows {
		if !now.Before(w.start.Add(f.window)) {
			delete(f.windows, k)
		}
	}
	f.lastSweep = now
}
