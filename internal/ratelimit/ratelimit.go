// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package ratelimit bounds the number of outbound lookup requests VPNShield
// issues per second. One Acquirer is shared by every lookup client so the
// ceiling applies to the primary and fallback services together.
//
// Two strategies are available:
//
//   - fixed_window (default): at most Limit acquisitions per window. Waiters
//     sleep until the window boundary on a timer and then compete again.
//   - token_bucket: golang.org/x/time/rate with rate Limit/window and a burst
//     of Limit.
//
// Acquire never denies. It returns early only when the context is done.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Strategy names accepted by New.
const (
	StrategyFixedWindow = "fixed_window"
	StrategyTokenBucket = "token_bucket"
)

// Defaults for the outbound limiter.
const (
	DefaultLimit  = 10
	DefaultWindow = time.Second
)

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("ratelimit: invalid config")

// Acquirer blocks until one outbound request may be issued.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Config selects and sizes a limiter.
type Config struct {
	Strategy string
	Limit    int
	Window   time.Duration
}

// DefaultConfig returns a fixed window of 10 requests per second.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategyFixedWindow,
		Limit:    DefaultLimit,
		Window:   DefaultWindow,
	}
}

// New builds the limiter described by cfg. Zero values fall back to defaults.
func New(cfg Config) (Acquirer, error) {
	if cfg.Limit == 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Limit < 0 || cfg.Window < 0 {
		return nil, fmt.Errorf("%w: limit %d window %s", ErrInvalidConfig, cfg.Limit, cfg.Window)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case "", StrategyFixedWindow:
		return NewWindow(cfg.Limit, cfg.Window), nil
	case StrategyTokenBucket:
		return NewTokenBucket(cfg.Limit, cfg.Window), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
}
