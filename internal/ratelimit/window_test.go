// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newFakeWindow(limit int) (*Window, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	w := NewWindow(limit, time.Second)
	w.now = clock.Now
	return w, clock
}

func TestWindow_AdmitsUpToLimit(t *testing.T) {
	t.Parallel()

	w, clock := newFakeWindow(3)
	for i := 0; i < 3; i++ {
		if _, ok := w.tryAcquire(); !ok {
			t.Fatalf("acquisition %d: expected admission", i+1)
		}
	}

	clock.Advance(400 * time.Millisecond)
	delay, ok := w.tryAcquire()
	if ok {
		t.Fatal("expected 4th acquisition in the same window to wait")
	}
	if delay != 600*time.Millisecond {
		t.Errorf("expected delay until window boundary of 600ms, got %v", delay)
	}

	clock.Advance(600 * time.Millisecond)
	if _, ok := w.tryAcquire(); !ok {
		t.Error("expected admission once now >= windowStart + 1s")
	}
	if count, limit := w.Stats(); count != 1 || limit != 3 {
		t.Errorf("expected 1/3 after window reset, got %d/%d", count, limit)
	}
}

func TestWindow_NoDoubleAdmission(t *testing.T) {
	t.Parallel()

	w, _ := newFakeWindow(5)
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := w.tryAcquire(); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 5 {
		t.Errorf("expected exactly 5 admissions in one window, got %d", got)
	}
}

func TestWindow_AcquireDelaysBeyondLimit(t *testing.T) {
	t.Parallel()

	w := NewWindow(2, 150*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := w.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Errorf("expected the 3rd acquisition to wait for the next window, elapsed %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected the 3rd acquisition to proceed promptly after the boundary, elapsed %v", elapsed)
	}
}

func TestWindow_AcquireContextCancelled(t *testing.T) {
	t.Parallel()

	w := NewWindow(1, time.Hour)
	if err := w.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := w.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestNewWindow_Defaults(t *testing.T) {
	t.Parallel()

	w := NewWindow(0, 0)
	if w.limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, w.limit)
	}
	if w.window != DefaultWindow {
		t.Errorf("expected default window %v, got %v", DefaultWindow, w.window)
	}
}
