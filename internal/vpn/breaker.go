// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package vpn

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vpnshield/internal/metrics"
)

// BreakerConfig configures the per-service circuit breaker.
type BreakerConfig struct {
	// Disabled turns the breaker off; every lookup reaches the network.
	Disabled bool

	// ConsecutiveFailures opens the breaker. Default 5.
	ConsecutiveFailures uint32

	// Timeout is how long the breaker stays open before a trial request. Default 30s.
	Timeout time.Duration

	// Interval resets the failure counts while closed. Default 60s.
	Interval time.Duration

	// MaxRequests is the number of trial requests allowed while half-open. Default 1.
	MaxRequests uint32
}

type breaker struct {
	cb *gobreaker.CircuitBreaker[Verdict]
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *breaker {
	if cfg.Disabled {
		return &breaker{}
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	threshold := cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[Verdict](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logger.Warn().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
	return &breaker{cb: cb}
}

// execute runs fn unless the breaker is open. A rejected call returns
// VerdictIndeterminate with gobreaker.ErrOpenState or ErrTooManyRequests.
func (b *breaker) execute(fn func() (Verdict, error)) (Verdict, error) {
	if b.cb == nil {
		return fn()
	}
	v, err := b.cb.Execute(fn)
	if err != nil {
		return VerdictIndeterminate, err
	}
	return v, nil
}

// State returns the breaker state name.
func (b *breaker) State() string {
	if b.cb == nil {
		return "disabled"
	}
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
