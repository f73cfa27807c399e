// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package config

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/providers/file"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vpnshield/internal/logging"
	"github.com/tomtom215/vpnshield/internal/vpn"
)

// Policy builds the per-check snapshot from the detection settings.
func (c *Config) Policy() (*vpn.Policy, error) {
	ttl, err := c.CacheTTL()
	if err != nil {
		return nil, err
	}

	primary := vpn.ServiceIPAPI
	if c.UsePrimaryService {
		primary = vpn.ServiceProxyCheck
	}

	return &vpn.Policy{
		Primary:            primary,
		FallbackEnabled:    c.EnableFallbackService,
		AllowJoinOnFailure: c.AllowJoinOnAPIFailure,
		CacheEnabled:       c.EnableCache,
		CacheTTL:           ttl,
		Debug:              c.EnableDebug,
		ProxyCheckAPIKey:   c.ProxyCheckAPIKey,
	}, nil
}

// WarnIfUnconfigured logs a warning when the proxycheck.io key is missing
// or still the placeholder. Lookups keep running; proxycheck.io answers
// keyless requests with a small daily quota. A configured key is logged
// masked.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (c *Config) WarnIfUnconfigured(logger zerolog.Logger) {
	if c.APIKeyConfigured() {
		logger.Info().
			Str("proxycheck_api_key", logging.SanitizeToken(strings.TrimSpace(c.ProxyCheckAPIKey))).
			Msg("proxycheck.io API key configured")
		return
	}
	logger.Warn().
		Str("setting", "proxycheck-api-key").
		Str("signup_url", "https://proxycheck.io/").
		Msg("VPNShield is not configured: set your proxycheck.io API key")
}

// Holder publishes the current configuration and policy. It implements
// vpn.PolicySource.
type Holder struct {
	path   string
	load   func(path string) (*Config, error)
	logger zerolog.Logger

	cfg    atomic.Pointer[Config]
	policy atomic.Pointer[vpn.Policy]

	mu        sync.Mutex
	listeners []func(*Config)
}

// NewHolder wraps an already loaded configuration. path is the file
// Reload reads again; it may be empty.
func NewHolder(path string, cfg *Config, logger zerolog.Logger) (*Holder, error) {
	h := &Holder{
		path:   path,
		load:   Load,
		logger: logger,
	}
	if err := h.publish(cfg); err != nil {
		return nil, err
	}
	return h, nil
}

// Path returns the watched config file, or "" when running on defaults.
func (h *Holder) Path() string {
	return h.path
}

// Config returns the current configuration. Callers must not modify it.
func (h *Holder) Config() *Config {
	return h.cfg.Load()
}

// Policy returns the current detection policy snapshot.
func (h *Holder) Policy() *vpn.Policy {
	return h.policy.Load()
}

// OnReload registers fn to run after every successful reload.
func (h *Holder) OnReload(fn func(*Config)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Reload reads the configuration again and swaps it in. On error the
// previous configuration stays active.
func (h *Holder) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := h.load(h.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if err := h.publish(cfg); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	cfg.WarnIfUnconfigured(h.logger)
	for _, fn := range h.listeners {
		fn(cfg)
	}

	p := h.policy.Load()
	h.logger.Info().
		Str("path", h.path).
		Str("primary", p.Primary.String()).
		Bool("fallback", p.FallbackEnabled).
		Bool("cache", p.CacheEnabled).
		Dur("cache_ttl", p.CacheTTL).
		Msg("Configuration reloaded")
	return nil
}

func (h *Holder) publish(cfg *Config) error {
	p, err := cfg.Policy()
	if err != nil {
		return err
	}
	h.cfg.Store(cfg)
	h.policy.Store(p)
	return nil
}

// Watch reloads whenever the config file changes. The returned function
// stops the watcher. Watching without a config file is a no-op.
func (h *Holder) Watch() (func(), error) {
	if h.path == "" {
		return func() {}, nil
	}

	provider, err := WatchConfigFile(h.path, func() {
		if err := h.Reload(); err != nil {
			h.logger.Error().Err(err).Msg("Config reload failed, keeping previous configuration")
		}
	}, func(err error) {
		h.logger.Warn().Err(err).Str("path", h.path).Msg("Config watcher error")
	})
	if err != nil {
		return nil, err
	}
	return func() { unwatch(provider) }, nil
}

func unwatch(p *file.File) {
	// Unwatch only fails when the watcher was never started.
	_ = p.Unwatch()
}
