// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package metrics holds the Prometheus instrumentation for VPNShield:
// detection checks, the result cache, the outbound rate limiter, lookup
// services, circuit breakers, the worker pool and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection Metrics
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshield_checks_total",
			Help: "Total number of detection checks by outcome source",
		},
		[]string{"source", "verdict"}, // source: "cache", "primary", "fallback", "policy"
	)

	CheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vpnshield_check_duration_seconds",
			Help:    "End-to-end duration of detection checks in seconds",
			Buckets: []float64{0.0005, 0.005, 0.05, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	MitigationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vpnshield_mitigations_total",
			Help: "Total number of connections refused because of a VPN verdict",
		},
	)

	CheckPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vpnshield_check_panics_total",
			Help: "Total number of recovered faults inside the detection sequence",
		},
	)

	// Lookup Service Metrics
	LookupRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshield_lookup_requests_total",
			Help: "Total number of lookup service calls by result",
		},
		[]string{"service", "result"}, // result: "vpn", "clean", "indeterminate"
	)

	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vpnshield_lookup_duration_seconds",
			Help:    "Duration of lookup service calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// Result Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vpnshield_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vpnshield_cache_misses_total",
			Help: "Total number of result cache misses (absent or expired)",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vpnshield_cache_entries",
			Help: "Current number of cached verdicts",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshield_cache_evictions_total",
			Help: "Total number of cache entries removed",
		},
		[]string{"reason"}, // reason: "capacity", "expired", "clear"
	)

	CachePersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vpnshield_cache_persist_errors_total",
			Help: "Total number of failed cache snapshot writes",
		},
	)

	CachePersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vpnshield_cache_persist_duration_seconds",
			Help:    "Duration of cache snapshot writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Rate Limiter Metrics
	LimiterAcquisitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vpnshield_limiter_acquisitions_total",
			Help: "Total number of outbound request slots granted",
		},
	)

	LimiterWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vpnshield_limiter_wait_seconds",
			Help:    "Time spent waiting for an outbound request slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vpnshield_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshield_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Worker Pool Metrics
	PoolQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vpnshield_pool_queue_depth",
			Help: "Number of checks waiting for a worker",
		},
	)

	PoolCallerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vpnshield_pool_caller_runs_total",
			Help: "Total number of checks run on the submitting goroutine because the queue was full",
		},
	)

	// HTTP API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnshield_api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vpnshield_api_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Update Checker Metrics
	UpdateAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vpnshield_update_available",
			Help: "1 when the update service reports a newer release",
		},
	)
)

// RecordCheck records the outcome of one detection check.
func RecordCheck(source string, vpn bool, duration time.Duration) {
	ChecksTotal.WithLabelValues(source, verdictLabel(vpn)).Inc()
	CheckDuration.Observe(duration.Seconds())
}

// RecordLookup records a lookup service call. result is the verdict name.
func RecordLookup(service, result string, duration time.Duration) {
	LookupRequests.WithLabelValues(service, result).Inc()
	LookupDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// RecordCacheEviction records n removed entries for reason.
func RecordCacheEviction(reason string, n int) {
	if n > 0 {
		CacheEvictions.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordPersist records one snapshot write.
func RecordPersist(duration time.Duration, err error) {
	CachePersistDuration.Observe(duration.Seconds())
	if err != nil {
		CachePersistErrors.Inc()
	}
}

// RecordLimiterWait records a granted slot and the time spent waiting for it.
func RecordLimiterWait(wait time.Duration) {
	LimiterAcquisitions.Inc()
	LimiterWait.Observe(wait.Seconds())
}

// RecordAPIRequest records an HTTP API request metric.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func verdictLabel(vpn bool) string {
	if vpn {
		return "vpn"
	}
	return "clean"
}
