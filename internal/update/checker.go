// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package update polls the release endpoint and reports when a newer
// VPNShield version is published.
package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vpnshield/internal/metrics"
)

const (
	// CurrentVersion is the running release.
	CurrentVersion = "1.0"

	// DefaultBaseURL serves /checkupdate/{product}/{version}.
	DefaultBaseURL = "https://api.pandadevv.dev"

	// Product is the path segment identifying this project.
	Product = "vpnshield"

	// DefaultInterval is how often to check for updates.
	DefaultInterval = 24 * time.Hour

	// DefaultHTTPTimeout bounds one request.
	DefaultHTTPTimeout = 5 * time.Second

	// DownloadURL is printed with the update warning.
	DownloadURL = "https://github.com/tomtom215/vpnshield/releases"

	maxResponseBytes = 16 * 1024
)

// ErrCheckInProgress is returned when CheckNow overlaps another check.
var ErrCheckInProgress = errors.New("update: check already in progress")

// Config configures the update checker.
type Config struct {
	// Enabled controls whether the background loop runs.
	Enabled bool

	// BaseURL is the release endpoint root.
	BaseURL string

	// Version is the version reported to the endpoint.
	Version string

	// Interval is how often to check.
	Interval time.Duration

	// HTTPTimeout bounds each request.
	HTTPTimeout time.Duration

	// RetryAttempts is the number of retries after a failed fetch.
	RetryAttempts int

	// RetryDelay is the initial delay between retries (doubles each attempt).
	RetryDelay time.Duration
}

// DefaultConfig returns the defaults for the checker.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		BaseURL:       DefaultBaseURL,
		Version:       CurrentVersion,
		Interval:      DefaultInterval,
		HTTPTimeout:   DefaultHTTPTimeout,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
	}
}

// Result is the endpoint's answer.
type Result struct {
	UpdateAvailable bool   `json:"update"`
	LatestVersion   string `json:"currentVersion"`
}

// Status tracks the checker.
type Status struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version,omitempty"`
	UpdateAvailable bool      `json:"update_available"`
	LastCheck       time.Time `json:"last_check"`
	LastSuccess     time.Time `json:"last_success"`
	LastError       string    `json:"last_error,omitempty"`
	NextCheck       time.Time `json:"next_check,omitempty"`
	IsChecking      bool      `json:"is_checking"`
}

// Checker runs the periodic update check.
type Checker struct {
	config Config
	client *http.Client
	logger zerolog.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a checker. Zero durations fall back to defaults.
func New(cfg Config, logger zerolog.Logger) *Checker {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}

	return &Checker{
		config: cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
		status: Status{CurrentVersion: cfg.Version},
	}
}

// RunWithContext checks once at start-up and then every Interval until ctx
// is canceled. A disabled checker blocks until ctx is canceled.
func (c *Checker) RunWithContext(ctx context.Context) error {
	if !c.config.Enabled {
		c.logger.Info().Msg("Update checks disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	c.logger.Info().Dur("interval", c.config.Interval).Msg("Checking for VPNShield updates")
	if _, err := c.CheckNow(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn().Err(err).Msg("Initial update check failed")
	}

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		c.status.NextCheck = time.Now().Add(c.config.Interval)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.CheckNow(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("Scheduled update check failed")
			}
		}
	}
}

// CheckNow queries the endpoint once, with retries.
func (c *Checker) CheckNow(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.status.IsChecking {
		c.mu.Unlock()
		return Result{}, ErrCheckInProgress
	}
	c.status.IsChecking = true
	c.status.LastCheck = time.Now()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.status.IsChecking = false
		c.mu.Unlock()
	}()

	data, err := c.fetchWithRetry(ctx, c.checkURL())
	if err == nil {
		var res Result
		if err = json.Unmarshal(data, &res); err == nil {
			c.record(res)
			return res, nil
		}
		err = fmt.Errorf("decode update response: %w", err)
	}

	c.mu.Lock()
	c.status.LastError = err.Error()
	c.mu.Unlock()
	return Result{}, err
}

// Status returns a copy of the current status.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Checker) record(res Result) {
	c.mu.Lock()
	c.status.LastSuccess = time.Now()
	c.status.LastError = ""
	c.status.UpdateAvailable = res.UpdateAvailable
	c.status.LatestVersion = res.LatestVersion
	c.mu.Unlock()

	if res.UpdateAvailable {
		metrics.UpdateAvailable.Set(1)
		c.logger.Warn().
			Str("current_version", c.config.Version).
			Str("latest_version", res.LatestVersion).
			Str("download_url", DownloadURL).
			Msg("VPNShield update available")
		return
	}
	metrics.UpdateAvailable.Set(0)
	c.logger.Info().Str("version", c.config.Version).Msg("VPNShield is up to date")
}

func (c *Checker) checkURL() string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/checkupdate/" + Product + "/" + url.PathEscape(c.config.Version)
}

// fetchWithRetry fetches u with exponential backoff retries.
func (c *Checker) fetchWithRetry(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug().
				Int("attempt", attempt).
				Int("max_attempts", c.config.RetryAttempts).
				Dur("delay", delay).
				Msg("Retrying update check")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		data, err := c.fetch(ctx, u)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("Update check attempt failed")
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.config.RetryAttempts+1, lastErr)
}

// fetch performs a single HTTP GET request.
func (c *Checker) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "VPNShield/"+c.config.Version)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}
