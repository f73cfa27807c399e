// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package vpn

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vpnshield/internal/logging"
	"github.com/tomtom215/vpnshield/internal/metrics"
	"github.com/tomtom215/vpnshield/internal/ratelimit"
)

// Source names where a check's answer came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourcePolicy   Source = "policy"
)

// Result is the outcome of one check.
type Result struct {
	VPN     bool   `json:"vpn"`
	Source  Source `json:"source"`
	Service string `json:"service,omitempty"`
}

// ResultStore is the subset of the result cache the detector uses.
type ResultStore interface {
	Lookup(ip string) (vpn, ok bool)
	Store(ip string, vpn bool)
}

// DetectorConfig wires the detector's collaborators.
type DetectorConfig struct {
	Policy     PolicySource
	Cache      ResultStore // nil disables caching regardless of policy
	Limiter    ratelimit.Acquirer
	ProxyCheck LookupClient
	IPAPI      LookupClient
}

// Detector runs the detection pipeline. It is safe for concurrent use.
type Detector struct {
	policy  PolicySource
	cache   ResultStore
	limiter ratelimit.Acquirer
	clients [2]LookupClient

	mitigations atomic.Int64
	failureWarn rate.Sometimes
	logger      zerolog.Logger
}

// NewDetector validates cfg and creates a Detector.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewDetector(cfg DetectorConfig, logger zerolog.Logger) (*Detector, error) {
	var errs []error
	if cfg.Policy == nil {
		errs = append(errs, errors.New("policy source is required"))
	}
	if cfg.Limiter == nil {
		errs = append(errs, errors.New("rate limiter is required"))
	}
	if cfg.ProxyCheck == nil {
		errs = append(errs, errors.New("proxycheck client is required"))
	}
	if cfg.IPAPI == nil {
		errs = append(errs, errors.New("ip-api client is required"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("vpn: new detector: %w", errors.Join(errs...))
	}

	d := &Detector{
		policy:      cfg.Policy,
		cache:       cfg.Cache,
		limiter:     cfg.Limiter,
		failureWarn: rate.Sometimes{First: 1, Interval: time.Minute},
		logger:      logger,
	}
	d.clients[ServiceProxyCheck] = cfg.ProxyCheck
	d.clients[ServiceIPAPI] = cfg.IPAPI
	return d, nil
}

// Check reports whether ip should be treated as a VPN or proxy. It never
// fails: when no service answers, the failure policy decides.
func (d *Detector) Check(ctx context.Context, ip string) bool {
	return d.CheckResult(ctx, ip).VPN
}

// CheckResult is Check with the source of the answer.
func (d *Detector) CheckResult(ctx context.Context, ip string) (res Result) {
	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)

	policy := d.policy.Policy()
	if policy == nil {
		policy = DefaultPolicy()
	}
	log := logging.WithContext(ctx, d.logger).With().Str("ip", ip).Logger()

	defer func() {
		if r := recover(); r != nil {
			metrics.CheckPanics.Inc()
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Bool("allow_join_on_failure", policy.AllowJoinOnFailure).
				Msg("Recovered fault during VPN check, applying failure policy")
			res = Result{VPN: policy.FailureVerdict(), Source: SourcePolicy}
		}
		metrics.RecordCheck(string(res.Source), res.VPN, time.Since(start))
	}()

	return d.check(ctx, ip, policy, &log)
}

func (d *Detector) check(ctx context.Context, ip string, policy *Policy, log *zerolog.Logger) Result {
	if policy.CacheEnabled && d.cache != nil {
		if vpn, ok := d.cache.Lookup(ip); ok {
			logging.Diag(log, policy.Debug).Bool("vpn", vpn).Msg("Using cached result")
			return Result{VPN: vpn, Source: SourceCache}
		}
	}

	primary := d.clients[policy.Primary]
	if v := d.lookup(ctx, primary, ip, policy); v.Definite() {
		return d.confirm(ip, v, SourcePrimary, primary.Service(), policy, log)
	}

	if policy.FallbackEnabled {
		fallback := d.clients[policy.Primary.Other()]
		logging.Diag(log, policy.Debug).
			Str("primary", primary.Service().String()).
			Str("fallback", fallback.Service().String()).
			Msg("Primary lookup indeterminate, trying fallback")
		if v := d.lookup(ctx, fallback, ip, policy); v.Definite() {
			return d.confirm(ip, v, SourceFallback, fallback.Service(), policy, log)
		}
	}

	verdict := policy.FailureVerdict()
	action := "allow"
	if verdict {
		action = "block"
	}
	emit := func() {
		log.Warn().
			Bool("allow_join_on_failure", policy.AllowJoinOnFailure).
			Str("action", action).
			Msg("All VPN lookups failed, applying failure policy")
	}
	if policy.Debug {
		emit()
	} else {
		d.failureWarn.Do(emit)
	}
	return Result{VPN: verdict, Source: SourcePolicy}
}

// lookup acquires the shared limiter and asks one service.
func (d *Detector) lookup(ctx context.Context, client LookupClient, ip string, policy *Policy) Verdict {
	if err := d.limiter.Acquire(ctx); err != nil {
		return VerdictIndeterminate
	}
	return client.Lookup(ctx, ip, policy)
}

func (d *Detector) confirm(ip string, v Verdict, src Source, svc Service, policy *Policy, log *zerolog.Logger) Result {
	vpn := v == VerdictVPN
	if policy.CacheEnabled && d.cache != nil {
		d.cache.Store(ip, vpn)
	}
	logging.Diag(log, policy.Debug).
		Bool("vpn", vpn).
		Str("service", svc.String()).
		Str("source", string(src)).
		Msg("VPN check complete")
	return Result{VPN: vpn, Source: src, Service: svc.String()}
}

// RecordMitigation counts one refused connection.
func (d *Detector) RecordMitigation() {
	d.mitigations.Add(1)
	metrics.MitigationsTotal.Inc()
}

// Mitigations returns the number of refused connections since start.
func (d *Detector) Mitigations() int64 {
	return d.mitigations.Load()
}
