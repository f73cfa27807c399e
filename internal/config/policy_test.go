// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package config

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vpnshield/internal/vpn"
)

func TestConfigPolicy(t *testing.T) {
	cfg := defaultConfig()
	cfg.ProxyCheckAPIKey = "real-key"
	cfg.UsePrimaryService = false
	cfg.EnableFallbackService = false
	cfg.AllowJoinOnAPIFailure = false
	cfg.EnableDebug = true
	cfg.CacheDuration = 90
	cfg.CacheTimeUnit = "SECONDS"

	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}

	want := vpn.Policy{
		Primary:            vpn.ServiceIPAPI,
		FallbackEnabled:    false,
		AllowJoinOnFailure: false,
		CacheEnabled:       true,
		CacheTTL:           90 * time.Second,
		Debug:              true,
		ProxyCheckAPIKey:   "real-key",
	}
	if *p != want {
		t.Errorf("Policy() = %+v, want %+v", *p, want)
	}
	if !p.FailureVerdict() {
		t.Error("FailureVerdict() = false, want true when joins are refused on failure")
	}

	cfg.UsePrimaryService = true
	p, _ = cfg.Policy()
	if p.Primary != vpn.ServiceProxyCheck {
		t.Errorf("Primary = %v, want proxycheck", p.Primary)
	}
}

func TestConfigPolicy_InvalidUnit(t *testing.T) {
	cfg := defaultConfig()
	cfg.CacheTimeUnit = "eons"
	if _, err := cfg.Policy(); err == nil {
		t.Error("Policy() error = nil, want unknown unit error")
	}
}

func TestWarnIfUnconfigured(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantWarn bool
	}{
		{"placeholder", PlaceholderAPIKey, true},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"configured", "000000-111111-222222-333333", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := defaultConfig()
			cfg.ProxyCheckAPIKey = tt.key

			cfg.WarnIfUnconfigured(zerolog.New(&buf))

			got := strings.Contains(buf.String(), `"level":"warn"`)
			if got != tt.wantWarn {
				t.Errorf("warned = %v, want %v (log: %s)", got, tt.wantWarn, buf.String())
			}
			if cfg.APIKeyConfigured() == tt.wantWarn {
				t.Errorf("APIKeyConfigured() = %v", cfg.APIKeyConfigured())
			}
			if !tt.wantWarn {
				if strings.Contains(buf.String(), tt.key) {
					t.Errorf("API key logged in clear: %s", buf.String())
				}
				if !strings.Contains(buf.String(), `"proxycheck_api_key":"0000...3333"`) {
					t.Errorf("masked key not logged: %s", buf.String())
				}
			}
		})
	}
}

func TestHolderReload(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "enable-cache: true\ncache-duration: 1\ncache-time-unit: hours\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var logBuf bytes.Buffer
	h, err := NewHolder(path, cfg, zerolog.New(&logBuf))
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}

	var _ vpn.PolicySource = h

	before := h.Policy()
	if before.CacheTTL != time.Hour || !before.CacheEnabled {
		t.Fatalf("initial policy = %+v", before)
	}

	var mu sync.Mutex
	var seen []*Config
	h.OnReload(func(c *Config) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})

	writeConfig(t, dir, "enable-cache: false\ncache-duration: 5\ncache-time-unit: minutes\n")
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	after := h.Policy()
	if after.CacheEnabled || after.CacheTTL != 5*time.Minute {
		t.Errorf("policy after reload = %+v", after)
	}
	if before.CacheTTL != time.Hour {
		t.Error("reload mutated the previous snapshot")
	}
	if h.Config().CacheDuration != 5 {
		t.Errorf("Config().CacheDuration = %d, want 5", h.Config().CacheDuration)
	}

	mu.Lock()
	if len(seen) != 1 || seen[0] != h.Config() {
		t.Errorf("listener calls = %d, want 1 with the new config", len(seen))
	}
	mu.Unlock()

	if !strings.Contains(logBuf.String(), "Configuration reloaded") {
		t.Errorf("reload not logged: %s", logBuf.String())
	}
}

func TestHolderReload_KeepsPreviousOnError(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "cache-duration: 3\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	h, err := NewHolder(path, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}

	called := false
	h.OnReload(func(*Config) { called = true })

	writeConfig(t, dir, "cache-time-unit: never\n")
	if err := h.Reload(); err == nil {
		t.Fatal("Reload() error = nil, want validation error")
	}

	if h.Policy().CacheTTL != 3*time.Hour {
		t.Errorf("CacheTTL = %v, want previous 3h", h.Policy().CacheTTL)
	}
	if called {
		t.Error("listener ran for a failed reload")
	}
}

func TestHolderReload_FileRemoved(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "cache-duration: 3\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHolder(path, cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	err = h.Reload()
	if err == nil {
		t.Fatal("Reload() error = nil, want missing file error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Reload() error = %v, want os.ErrNotExist in chain", err)
	}
}

func TestHolderWatch_NoFile(t *testing.T) {
	h, err := NewHolder("", defaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	stop, err := h.Watch()
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	stop()
}

func TestHolderWatch_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "cache-duration: 1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHolder(path, cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan struct{}, 4)
	h.OnReload(func(*Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	stop, err := h.Watch()
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer stop()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("cache-duration: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for h.Policy().CacheTTL != 7*time.Hour {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatalf("CacheTTL = %v after 5s, want 7h", h.Policy().CacheTTL)
		}
	}
}
