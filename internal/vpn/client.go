// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package vpn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vpnshield/internal/logging"
	"github.com/tomtom215/vpnshield/internal/metrics"
)

const (
	// DefaultUserAgent is sent with every lookup request.
	DefaultUserAgent = "VPNShield/1.0"

	// DefaultConnectTimeout bounds connection establishment.
	DefaultConnectTimeout = 3 * time.Second

	// DefaultReadTimeout bounds the wait for the response.
	DefaultReadTimeout = 3 * time.Second

	maxResponseBytes = 64 << 10
)

// Lookup failures. They are internal: clients turn them into
// VerdictIndeterminate and they only appear in logs.
var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrMalformed        = errors.New("malformed response")
	ErrMissingField     = errors.New("missing expected field")
	ErrServiceStatus    = errors.New("service reported failure")
)

// LookupClient asks one reputation service about an address.
type LookupClient interface {
	Service() Service
	Lookup(ctx context.Context, ip string, policy *Policy) Verdict
}

// ClientConfig configures a lookup client. Zero values use defaults.
type ClientConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	UserAgent      string
	Breaker        BreakerConfig

	// HTTPClient replaces the client built from the timeouts.
	HTTPClient *http.Client

	Logger *zerolog.Logger
}

// httpLookup holds what both clients share: the HTTP client, the breaker
// and the request helper.
type httpLookup struct {
	service   Service
	baseURL   string
	userAgent string
	client    *http.Client
	breaker   *breaker
	logger    zerolog.Logger
}

func newHTTPLookup(service Service, defaultBase string, cfg ClientConfig) httpLookup {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBase
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	logger := logging.WithComponent("lookup")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("service", service.String()).Logger()

	return httpLookup{
		service:   service,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    client,
		breaker:   newBreaker(service.String(), cfg.Breaker, logger),
		logger:    logger,
	}
}

// newHTTPClient builds a client whose dial is bounded by connect and whose
// wait for response headers and body is bounded by read.
func newHTTPClient(connect, read time.Duration) *http.Client {
	return &http.Client{
		Timeout: connect + read,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connect,
			ResponseHeaderTimeout: read,
			ExpectContinueTimeout: time.Second,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Service returns the service this client talks to.
func (h *httpLookup) Service() Service {
	return h.service
}

// run executes one lookup through the breaker and records metrics. Any
// failure, including an open breaker, becomes VerdictIndeterminate.
func (h *httpLookup) run(ctx context.Context, ip string, policy *Policy, fn func() (Verdict, error)) Verdict {
	start := time.Now()
	v, err := h.breaker.execute(fn)
	metrics.RecordLookup(h.service.String(), v.String(), time.Since(start))

	if err != nil {
		l := logging.WithContext(ctx, h.logger)
		logging.Diag(&l, policy != nil && policy.Debug).
			Err(err).
			Str("ip", ip).
			Msg("Lookup indeterminate")
		return VerdictIndeterminate
	}
	return v
}

// get issues one GET and returns the body of a 2xx response.
func (h *httpLookup) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", logging.SanitizeURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
