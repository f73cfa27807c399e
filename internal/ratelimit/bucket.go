// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/vpnshield/internal/metrics"
)

// TokenBucket spreads acquisitions evenly instead of admitting a burst at the
// start of each window.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket refills limit tokens per window with a burst of limit.
func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	every := rate.Every(window / time.Duration(limit))
	return &TokenBucket{limiter: rate.NewLimiter(every, limit)}
}

// Acquire waits for a token.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := b.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	metrics.RecordLimiterWait(time.Since(start))
	return nil
}
