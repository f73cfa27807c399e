// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package config

import (
	"fmt"
	"strings"
	"time"
)

// PlaceholderAPIKey is the value shipped in the sample configuration.
const PlaceholderAPIKey = "YOUR_PROXYCHECK_API_KEY"

// Config holds all application configuration.
//
// The top-level dash-separated fields are the detection settings read once
// per check through Policy. The nested sections size the pipeline and the
// sidecar process and are read at start-up only.
type Config struct {
	ProxyCheckAPIKey      string `koanf:"proxycheck-api-key"`
	UsePrimaryService     bool   `koanf:"use-primary-service"`
	EnableFallbackService bool   `koanf:"enable-fallback-service"`
	AllowJoinOnAPIFailure bool   `koanf:"allow-join-on-api-failure"`
	EnableCache           bool   `koanf:"enable-cache"`
	CacheDuration         int    `koanf:"cache-duration" validate:"gt=0"`
	CacheTimeUnit         string `koanf:"cache-time-unit" validate:"timeunit"`
	EnableDebug           bool   `koanf:"enable-debug"`

	// DataDir holds the cache snapshot, the whitelist and the detection log.
	DataDir string `koanf:"data_dir" validate:"required"`

	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Lookup    LookupConfig    `koanf:"lookup"`
	Pool      PoolConfig      `koanf:"pool"`
	Server    ServerConfig    `koanf:"server"`
	Update    UpdateConfig    `koanf:"update"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// CacheConfig sizes the result cache and selects its persistence backend.
type CacheConfig struct {
	Backend         string        `koanf:"backend" validate:"oneof=file badger memory"`
	Capacity        int           `koanf:"capacity" validate:"gt=0"`
	SweepInterval   time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	AsyncPersist    bool          `koanf:"async_persist"`
}

// RateLimitConfig bounds outbound lookup requests.
type RateLimitConfig struct {
	Strategy string        `koanf:"strategy" validate:"oneof=fixed_window token_bucket"`
	Limit    int           `koanf:"limit" validate:"gt=0"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
}

// LookupConfig configures the reputation service clients.
type LookupConfig struct {
	ProxyCheckURL  string        `koanf:"proxycheck_url" validate:"required,http_url"`
	IPAPIURL       string        `koanf:"ipapi_url" validate:"required,http_url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"gt=0"`
	UserAgent      string        `koanf:"user_agent" validate:"required"`
	Breaker        BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the per-service circuit breaker.
type BreakerConfig struct {
	Disabled            bool          `koanf:"disabled"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"gt=0"`
	Timeout             time.Duration `koanf:"timeout" validate:"gt=0"`
	Interval            time.Duration `koanf:"interval" validate:"gte=0"`
}

// PoolConfig sizes the asynchronous check pool.
type PoolConfig struct {
	Workers         int           `koanf:"workers" validate:"gt=0,lte=256"`
	QueueSize       int           `koanf:"queue_size" validate:"gt=0"`
	IdleExpiry      time.Duration `koanf:"idle_expiry" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// ServerConfig configures the HTTP sidecar.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// UpdateConfig configures the background update check.
type UpdateConfig struct {
	Enabled  bool          `koanf:"enabled"`
	URL      string        `koanf:"url" validate:"omitempty,http_url"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// timeUnits maps cache-time-unit names to durations.
var timeUnits = map[string]time.Duration{
	"seconds": time.Second,
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
}

// ParseTimeUnit returns the duration of one unit. Matching is case
// insensitive so both "hours" and "HOURS" are accepted.
func ParseTimeUnit(unit string) (time.Duration, error) {
	d, ok := timeUnits[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, fmt.Errorf("unknown cache time unit %q", unit)
	}
	return d, nil
}

// CacheTTL is cache-duration expressed in cache-time-unit.
func (c *Config) CacheTTL() (time.Duration, error) {
	unit, err := ParseTimeUnit(c.CacheTimeUnit)
	if err != nil {
		return 0, err
	}
	if c.CacheDuration <= 0 {
		return 0, fmt.Errorf("cache-duration must be positive, got %d", c.CacheDuration)
	}
	return time.Duration(c.CacheDuration) * unit, nil
}

// APIKeyConfigured reports whether a real proxycheck.io key is set.
func (c *Config) APIKeyConfigured() bool {
	key := strings.TrimSpace(c.ProxyCheckAPIKey)
	return key != "" && key != PlaceholderAPIKey
}
