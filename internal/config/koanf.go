// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yml",
	"config.yaml",
	"/etc/vpnshield/config.yml",
	"/etc/vpnshield/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "VPNSHIELD_CONFIG"

// defaultConfig returns the configuration used when no file or variable
// overrides a setting. The detection defaults match the shipped config.yml.
func defaultConfig() *Config {
	return &Config{
		ProxyCheckAPIKey:      PlaceholderAPIKey,
		UsePrimaryService:     true,
		EnableFallbackService: true,
		AllowJoinOnAPIFailure: true,
		EnableCache:           true,
		CacheDuration:         12,
		CacheTimeUnit:         "hours",
		EnableDebug:           false,
		DataDir:               "data",
		Cache: CacheConfig{
			Backend:         "file",
			Capacity:        10000,
			SweepInterval:   5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AsyncPersist:    false,
		},
		RateLimit: RateLimitConfig{
			Strategy: "fixed_window",
			Limit:    10,
			Window:   time.Second,
		},
		Lookup: LookupConfig{
			ProxyCheckURL:  "https://proxycheck.io",
			IPAPIURL:       "http://ip-api.com",
			ConnectTimeout: 3 * time.Second,
			ReadTimeout:    3 * time.Second,
			UserAgent:      "VPNShield/1.0",
			Breaker: BreakerConfig{
				Disabled:            false,
				ConsecutiveFailures: 5,
				Timeout:             30 * time.Second,
				Interval:            60 * time.Second,
			},
		},
		Pool: PoolConfig{
			Workers:         4,
			QueueSize:       100,
			IdleExpiry:      60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8765",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
		},
		Update: UpdateConfig{
			Enabled:  true,
			URL:      "https://api.pandadevv.dev",
			Interval: 24 * time.Hour,
			Timeout:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if found)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	return Load(FindConfigFile())
}

// Load is LoadWithKoanf with an explicit config file. An empty path skips
// the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FindConfigFile returns the file named by VPNSHIELD_CONFIG if it exists,
// otherwise the first existing entry of DefaultConfigPaths, otherwise "".
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set through the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings names every environment variable that can override a setting.
var envMappings = map[string]string{
	// Detection settings
	"proxycheck_api_key":        "proxycheck-api-key",
	"use_primary_service":       "use-primary-service",
	"enable_fallback_service":   "enable-fallback-service",
	"allow_join_on_api_failure": "allow-join-on-api-failure",
	"enable_cache":              "enable-cache",
	"cache_duration":            "cache-duration",
	"cache_time_unit":           "cache-time-unit",
	"enable_debug":              "enable-debug",

	"vpnshield_data_dir": "data_dir",

	// Cache
	"cache_backend":        "cache.backend",
	"cache_capacity":       "cache.capacity",
	"cache_sweep_interval": "cache.sweep_interval",
	"cache_async_persist":  "cache.async_persist",

	// Outbound rate limit
	"rate_limit_strategy": "rate_limit.strategy",
	"rate_limit":          "rate_limit.limit",
	"rate_limit_window":   "rate_limit.window",

	// Lookup clients
	"proxycheck_url":          "lookup.proxycheck_url",
	"ipapi_url":               "lookup.ipapi_url",
	"lookup_connect_timeout":  "lookup.connect_timeout",
	"lookup_read_timeout":     "lookup.read_timeout",
	"lookup_breaker_disabled": "lookup.breaker.disabled",

	// Worker pool
	"pool_workers":    "pool.workers",
	"pool_queue_size": "pool.queue_size",

	// HTTP sidecar
	"http_addr":             "server.addr",
	"cors_origins":          "server.cors_origins",
	"api_rate_limit":        "server.rate_limit_reqs",
	"api_rate_limit_window": "server.rate_limit_window",

	// Update check
	"update_check_enabled":  "update.enabled",
	"update_check_url":      "update.url",
	"update_check_interval": "update.interval",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped.
//
// Examples:
//   - PROXYCHECK_API_KEY -> proxycheck-api-key
//   - CACHE_BACKEND -> cache.backend
//   - HTTP_ADDR -> server.addr
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes.
// Watch errors are passed to onError when it is non-nil.
func WatchConfigFile(path string, callback func(), onError func(error)) (*file.File, error) {
	provider := file.Provider(path)
	err := provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		callback()
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return provider, nil
}
