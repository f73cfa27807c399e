// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/vpnshield/internal/metrics"
)

// Window admits at most limit acquisitions per fixed window. The window
// restarts on the first acquisition at or after windowStart+window.
type Window struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int

	now func() time.Time
}

// NewWindow creates a fixed-window limiter.
func NewWindow(limit int, window time.Duration) *Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Window{limit: limit, window: window, now: time.Now}
}

// Acquire blocks until a slot in the current window is free and records it.
func (w *Window) Acquire(ctx context.Context) error {
	start := w.now()
	for {
		delay, ok := w.tryAcquire()
		if ok {
			metrics.RecordLimiterWait(w.now().Sub(start))
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire takes a slot if one is free. Otherwise it returns the time left
// until the window boundary.
func (w *Window) tryAcquire() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	end := w.windowStart.Add(w.window)
	if !now.Before(end) {
		w.windowStart = now
		w.count = 0
		end = now.Add(w.window)
	}
	if w.count < w.limit {
		w.count++
		return 0, true
	}

	delay := end.Sub(now)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay, false
}

// Stats reports the admissions in the current window.
func (w *Window) Stats() (count, limit int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.now().Before(w.windowStart.Add(w.window)) {
		return 0, w.limit
	}
	return w.count, w.limit
}
