// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/vpnshield/internal/logging"
	"github.com/tomtom215/vpnshield/internal/metrics"
)

// =====================================================
// Middleware Configuration Tests
// =====================================================

func TestNewMiddleware_DefaultConfig(t *testing.T) {
	m := NewMiddleware(nil)

	if m.config == nil {
		t.Fatal("config is nil")
	}
	if len(m.config.CORSAllowedOrigins) != 1 || m.config.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v, want [*]", m.config.CORSAllowedOrigins)
	}
	if m.config.RateLimitRequests != 600 || m.config.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%v, want 600/1m", m.config.RateLimitRequests, m.config.RateLimitWindow)
	}
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// =====================================================
// CORS Middleware Tests
// =====================================================

func TestCORS_Preflight(t *testing.T) {
	m := NewMiddleware(&MiddlewareConfig{
		CORSAllowedOrigins: []string{"https://panel.example.com"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         60,
	})
	h := m.CORS()(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/v1/check", nil)
	req.Header.Set("Origin", "https://panel.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://panel.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/v1/check", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

// =====================================================
// Rate Limit Middleware Tests
// =====================================================

func TestRateLimit_Blocks(t *testing.T) {
	m := NewMiddleware(&MiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	h := m.RateLimit()(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/check", nil)
		req.RemoteAddr = "192.0.2.1:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first two requests = %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", codes[2])
	}

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/v1/check", nil)
	req.RemoteAddr = "192.0.2.2:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	m := NewMiddleware(&MiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true})
	h := m.RateLimit()(http.HandlerFunc(okHandler))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, rec.Code)
		}
	}
}

// =====================================================
// Request ID Middleware Tests
// =====================================================

func TestRequestIDWithLogging(t *testing.T) {
	var requestID, correlationID string
	h := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = logging.RequestIDFromContext(r.Context())
		correlationID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if requestID == "" {
		t.Error("request ID not set in logging context")
	}
	if correlationID == "" {
		t.Error("correlation ID not set in logging context")
	}
	if got := rec.Header().Get("X-Request-Id"); got != requestID {
		t.Errorf("X-Request-Id header = %q, want %q", got, requestID)
	}
}

func TestRequestIDWithLogging_PreservesInbound(t *testing.T) {
	var requestID string
	h := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = logging.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "proxy-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if requestID != "proxy-42" {
		t.Errorf("request ID = %q, want proxy-42", requestID)
	}
}

func TestRequestIDWithLogging_RequestLogger(t *testing.T) {
	var buf bytes.Buffer
	inner := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Ctx(r.Context()).Info().Msg("served")
	}))
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithLogger(context.Background(), logging.NewTestLogger(&buf))
		inner.ServeHTTP(w, r.WithContext(ctx))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/check?ip=203.0.113.9", nil)
	req.Header.Set("X-Request-Id", "proxy-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{`"method":"GET"`, `"path":"/v1/check"`, `"request_id":"proxy-7"`, `"correlation_id":`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "203.0.113.9") {
		t.Errorf("query string leaked into request logger: %s", out)
	}
}

// =====================================================
// Metrics Middleware Tests
// =====================================================

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics())
	r.Get("/probe/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/probe/{id}", "418")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe/2", nil))

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests recorded = %v, want 2", got)
	}
}

func TestMetrics_DefaultStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics())
	r.Get("/probe-implicit", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/probe-implicit", "200")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe-implicit", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("requests recorded = %v, want 1", got)
	}
}
