// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package vpn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vpnshield/internal/metrics"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("vpn: pool closed")

// Pool defaults.
const (
	DefaultPoolWorkers         = 4
	DefaultPoolQueueSize       = 100
	DefaultPoolIdleExpiry      = 60 * time.Second
	DefaultPoolShutdownTimeout = 5 * time.Second
)

// CheckFunc runs one check. Detector.CheckResult satisfies it.
type CheckFunc func(ctx context.Context, ip string) Result

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	// Workers is the maximum number of concurrent checks.
	Workers int

	// QueueSize bounds the checks waiting for a worker. A submission that
	// finds the queue full runs on the submitting goroutine.
	QueueSize int

	// IdleExpiry retires workers idle for longer than this.
	IdleExpiry time.Duration

	// ShutdownTimeout bounds the wait for queued and running checks.
	ShutdownTimeout time.Duration
}

// DefaultPoolConfig returns 4 workers, a queue of 100 and 60s idle expiry.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:         DefaultPoolWorkers,
		QueueSize:       DefaultPoolQueueSize,
		IdleExpiry:      DefaultPoolIdleExpiry,
		ShutdownTimeout: DefaultPoolShutdownTimeout,
	}
}

// Pending is the handle of a submitted check.
type Pending struct {
	done   chan struct{}
	result Result
}

// Done is closed when the check has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the check finishes or ctx is done. Cancelling ctx stops
// the wait, not the check.
func (p *Pending) Wait(ctx context.Context) (bool, error) {
	r, err := p.WaitResult(ctx)
	return r.VPN, err
}

// WaitResult is Wait with the source of the answer.
func (p *Pending) WaitResult(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type task struct {
	ctx     context.Context
	ip      string
	pending *Pending
}

// Pool runs checks on a bounded set of ants workers fed by a bounded queue.
type Pool struct {
	check   CheckFunc
	workers *ants.Pool
	queue   chan task

	mu     sync.RWMutex
	closed bool

	dispatchDone    chan struct{}
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewPool creates a pool running check.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPool(check CheckFunc, cfg PoolConfig, logger zerolog.Logger) (*Pool, error) {
	if check == nil {
		return nil, errors.New("vpn: new pool: check function is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPoolWorkers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.IdleExpiry <= 0 {
		cfg.IdleExpiry = DefaultPoolIdleExpiry
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultPoolShutdownTimeout
	}

	workers, err := ants.NewPool(cfg.Workers,
		ants.WithExpiryDuration(cfg.IdleExpiry),
		ants.WithNonblocking(false),
		ants.WithLogger(antsLogger{logger}),
		ants.WithPanicHandler(func(r any) {
			logger.Error().Interface("panic", r).Msg("Worker panicked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("vpn: new pool: %w", err)
	}

	p := &Pool{
		check:           check,
		workers:         workers,
		queue:           make(chan task, cfg.QueueSize),
		dispatchDone:    make(chan struct{}),
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
	go p.dispatch()
	return p, nil
}

// Submit schedules a check of ip. When the queue is full the check runs on
// the calling goroutine and the returned Pending is already done. ctx
// supplies values such as the correlation ID; its cancellation does not stop
// the check.
func (p *Pool) Submit(ctx context.Context, ip string) (*Pending, error) {
	t := task{
		ctx:     context.WithoutCancel(ctx),
		ip:      ip,
		pending: &Pending{done: make(chan struct{})},
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	select {
	case p.queue <- t:
		metrics.PoolQueueDepth.Set(float64(len(p.queue)))
		p.mu.RUnlock()
		return t.pending, nil
	default:
	}
	p.mu.RUnlock()

	metrics.PoolCallerRuns.Inc()
	p.run(t)
	return t.pending, nil
}

// dispatch feeds queued tasks to the workers. ants blocks Submit while every
// worker is busy, which keeps the queue as the only buffer.
func (p *Pool) dispatch() {
	defer close(p.dispatchDone)
	for t := range p.queue {
		metrics.PoolQueueDepth.Set(float64(len(p.queue)))
		if err := p.workers.Submit(func() { p.run(t) }); err != nil {
			p.logger.Warn().Err(err).Str("ip", t.ip).Msg("Worker pool rejected check, running inline")
			p.run(t)
		}
	}
}

func (p *Pool) run(t task) {
	defer close(t.pending.done)
	t.pending.result = p.check(t.ctx, t.ip)
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.workers.Running()
}

// Shutdown stops accepting checks, drains the queue and waits for running
// checks, bounded by the configured timeout and ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	deadline := time.Now().Add(p.shutdownTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-p.dispatchDone:
	case <-timer.C:
		p.workers.Release()
		return fmt.Errorf("vpn: pool shutdown: queue not drained within %s", p.shutdownTimeout)
	case <-ctx.Done():
		p.workers.Release()
		return fmt.Errorf("vpn: pool shutdown: %w", ctx.Err())
	}

	if err := p.workers.ReleaseTimeout(time.Until(deadline)); err != nil {
		return fmt.Errorf("vpn: pool shutdown: %w", err)
	}
	p.logger.Info().Msg("Worker pool stopped")
	return nil
}

// antsLogger routes ants' internal messages to zerolog.
type antsLogger struct {
	l zerolog.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.l.Warn().Msgf(format, args...)
}
