// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package vpn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var nopLogger = zerolog.Nop()

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		BaseURL: url,
		Logger:  &nopLogger,
		Breaker: BreakerConfig{Disabled: true},
	}
}

func TestProxyCheck_Lookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   Verdict
	}{
		{"vpn", 200, `{"status":"ok","203.0.113.7":{"proxy":"yes","type":"VPN"}}`, VerdictVPN},
		{"clean", 200, `{"status":"ok","203.0.113.7":{"proxy":"no"}}`, VerdictClean},
		{"status denied", 200, `{"status":"denied","message":"quota"}`, VerdictIndeterminate},
		{"missing status", 200, `{"203.0.113.7":{"proxy":"yes"}}`, VerdictIndeterminate},
		{"missing ip object", 200, `{"status":"ok"}`, VerdictIndeterminate},
		{"missing proxy field", 200, `{"status":"ok","203.0.113.7":{"type":"VPN"}}`, VerdictIndeterminate},
		{"malformed", 200, `{"status":`, VerdictIndeterminate},
		{"server error", 500, `{"status":"ok","203.0.113.7":{"proxy":"yes"}}`, VerdictIndeterminate},
		{"rate limited", 429, ``, VerdictIndeterminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewProxyCheck(testClientConfig(srv.URL))
			if got := client.Lookup(context.Background(), "203.0.113.7", &Policy{}); got != tt.want {
				t.Errorf("Lookup() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProxyCheck_Request(t *testing.T) {
	t.Parallel()

	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"status":"ok","198.51.100.4":{"proxy":"no"}}`))
	}))
	defer srv.Close()

	client := NewProxyCheck(testClientConfig(srv.URL))
	if got := client.Lookup(context.Background(), "198.51.100.4", &Policy{ProxyCheckAPIKey: "abc-123"}); got != VerdictClean {
		t.Fatalf("expected Clean, got %v", got)
	}
	r := <-reqs

	if r.URL.Path != "/v2/198.51.100.4" {
		t.Errorf("expected path /v2/198.51.100.4, got %s", r.URL.Path)
	}
	if got := r.URL.Query().Get("key"); got != "abc-123" {
		t.Errorf("expected key abc-123, got %q", got)
	}
	if got := r.URL.Query().Get("vpn"); got != "1" {
		t.Errorf("expected vpn=1, got %q", got)
	}
	if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
		t.Errorf("expected User-Agent %q, got %q", DefaultUserAgent, got)
	}
	if client.Service() != ServiceProxyCheck {
		t.Errorf("expected ServiceProxyCheck, got %v", client.Service())
	}
}

func TestIPAPI_Lookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   Verdict
	}{
		{"vpn", 200, `{"status":"success","isp":"M247","org":"M247","proxy":true,"query":"203.0.113.7"}`, VerdictVPN},
		{"clean", 200, `{"status":"success","isp":"Comcast","proxy":false,"query":"203.0.113.7"}`, VerdictClean},
		{"fail", 200, `{"status":"fail","message":"reserved range","query":"203.0.113.7"}`, VerdictIndeterminate},
		{"missing proxy", 200, `{"status":"success","isp":"Comcast"}`, VerdictIndeterminate},
		{"missing status", 200, `{"proxy":true}`, VerdictIndeterminate},
		{"malformed", 200, `not json`, VerdictIndeterminate},
		{"not found", 404, `{}`, VerdictIndeterminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewIPAPI(testClientConfig(srv.URL))
			if got := client.Lookup(context.Background(), "203.0.113.7", &Policy{}); got != tt.want {
				t.Errorf("Lookup() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIPAPI_Request(t *testing.T) {
	t.Parallel()

	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"status":"success","proxy":false}`))
	}))
	defer srv.Close()

	NewIPAPI(testClientConfig(srv.URL)).Lookup(context.Background(), "192.0.2.1", nil)
	r := <-reqs

	if r.URL.Path != "/json/192.0.2.1" {
		t.Errorf("expected path /json/192.0.2.1, got %s", r.URL.Path)
	}
	if got := r.URL.Query().Get("fields"); got != "status,isp,org,proxy,query" {
		t.Errorf("unexpected fields %q", got)
	}
}

func TestLookup_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if got := NewIPAPI(testClientConfig(url)).Lookup(context.Background(), "192.0.2.1", &Policy{}); got != VerdictIndeterminate {
		t.Errorf("expected Indeterminate on connection refused, got %v", got)
	}
}

func TestLookup_ReadTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testClientConfig(srv.URL)
	cfg.ConnectTimeout = 100 * time.Millisecond
	cfg.ReadTimeout = 100 * time.Millisecond

	start := time.Now()
	got := NewProxyCheck(cfg).Lookup(context.Background(), "192.0.2.1", &Policy{})
	if got != VerdictIndeterminate {
		t.Errorf("expected Indeterminate on timeout, got %v", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected lookup to give up after the read timeout, took %v", elapsed)
	}
}

func TestBreaker_OpenSkipsNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testClientConfig(srv.URL)
	cfg.Breaker = BreakerConfig{ConsecutiveFailures: 3, Timeout: time.Hour}
	client := NewIPAPI(cfg)

	for i := 0; i < 5; i++ {
		if got := client.Lookup(context.Background(), "192.0.2.1", &Policy{}); got != VerdictIndeterminate {
			t.Fatalf("lookup %d: expected Indeterminate, got %v", i, got)
		}
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("expected breaker to open after 3 failures, server saw %d calls", got)
	}
	if state := client.breaker.State(); state != "open" {
		t.Errorf("expected open breaker, got %s", state)
	}
}

func TestBreaker_DefinitePassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","proxy":true}`))
	}))
	defer srv.Close()

	cfg := testClientConfig(srv.URL)
	cfg.Breaker = BreakerConfig{}
	client := NewIPAPI(cfg)

	for i := 0; i < 10; i++ {
		if got := client.Lookup(context.Background(), "192.0.2.1", &Policy{}); got != VerdictVPN {
			t.Fatalf("lookup %d: expected VPN, got %v", i, got)
		}
	}
	if state := client.breaker.State(); state != "closed" {
		t.Errorf("expected closed breaker, got %s", state)
	}
}
