package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestFixedWindow_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewFixedWindow(20, time.Minute, WithClock(clock))
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		res, err := l.Allow(ctx, "user-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		if res.Remaining != 20-i {
			t.Errorf("request %d: Remaining = %d, want %d", i, res.Remaining, 20-i)
		}
		if res.Limit != 20 {
			t.Errorf("Limit = %d, want 20", res.Limit)
		}
	}

	res, _ := l.Allow(ctx, "user-1")
	if res.Allowed {
		t.Fatal("21st request should be rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if want := clock.Now().Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", res.ResetAt, want)
	}
}

func TestFixedWindow_ResetsAfterWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewFixedWindow(2, time.Minute, WithClock(clock))
	ctx := context.Background()

	l.Allow(ctx, "u")
	l.Allow(ctx, "u")
	if res, _ := l.Allow(ctx, "u"); res.Allowed {
		t.Fatal("expected rejection inside window")
	}

	clock.Advance(59 * time.Second)
	if res, _ := l.Allow(ctx, "u"); res.Allowed {
		t.Fatal("expected rejection one second before rollover")
	}

	clock.Advance(time.Second)
	res, _ := l.Allow(ctx, "u")
	if !res.Allowed {
		t.Fatal("expected allowed after window rolled over")
	}
	if res.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", res.Remaining)
	}
}

func TestFixedWindow_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewFixedWindow(1, time.Minute, WithClock(clock))
	ctx := context.Background()

	first, _ := l.Allow(ctx, "u")
	clock.Advance(30 * time.Second)
	second, _ := l.Allow(ctx, "u")

	if second.Allowed {
		t.Fatal("expected rejection")
	}
	if !second.ResetAt.Equal(first.ResetAt) {
		t.Errorf("ResetAt moved from %v to %v", first.ResetAt, second.ResetAt)
	}
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := NewFixedWindow(1, time.Minute, WithClock(newFakeClock()))
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "a"); !res.Allowed {
		t.Fatal("a: expected allowed")
	}
	if res, _ := l.Allow(ctx, "b"); !res.Allowed {
		t.Fatal("b: expected allowed")
	}
	if res, _ := l.Allow(ctx, "a"); res.Allowed {
		t.Fatal("a: expected rejection")
	}
}

func TestFixedWindow_SweepsExpiredWindows(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewFixedWindow(5, time.Minute, WithClock(clock))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		l.Allow(ctx, fmt.Sprintf("user-%d", i))
	}
	if l.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", l.Len())
	}

	clock.Advance(2 * time.Minute)
	l.Allow(ctx, "fresh")

	if l.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", l.Len())
	}
}

func TestFixedWindow_Defaults(t *testing.T) {
	t.Parallel()

	l := NewFixedWindow(0, 0)
	if l.limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", l.limit, DefaultLimit)
	}
	if l.window != DefaultWindow {
		t.Errorf("window = %v, want %v", l.window, DefaultWindow)
	}
}

func TestFixedWindow_Concurrent(t *testing.T) {
	t.Parallel()

	l := NewFixedWindow(50, time.Minute, WithClock(newFakeClock()))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := l.Allow(ctx, "shared")
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestResult_RetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		resetAt time.Time
		want    time.Duration
	}{
		{"whole seconds", now.Add(30 * time.Second), 30 * time.Second},
		{"rounds up", now.Add(1500 * time.Millisecond), 2 * time.Second},
		{"already passed", now.Add(-time.Second), time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Result{ResetAt: tt.resetAt}.RetryAfter(now)
			if got != tt.want {
				t.Errorf("RetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
