// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tomtom215/vpnshield/internal/api"
	"github.com/tomtom215/vpnshield/internal/cache"
	"github.com/tomtom215/vpnshield/internal/config"
	"github.com/tomtom215/vpnshield/internal/logging"
	"github.com/tomtom215/vpnshield/internal/ratelimit"
	"github.com/tomtom215/vpnshield/internal/supervisor"
	"github.com/tomtom215/vpnshield/internal/supervisor/services"
	"github.com/tomtom215/vpnshield/internal/update"
	"github.com/tomtom215/vpnshield/internal/vpn"
	"github.com/tomtom215/vpnshield/internal/whitelist"
)

// app holds every long-lived component built from the configuration.
type app struct {
	holder     *config.Holder
	cache      *cache.ResultCache
	detector   *vpn.Detector
	pool       *vpn.Pool
	whitelist  *whitelist.List
	detections *whitelist.DetectionLog
	updates    *update.Checker
	handler    http.Handler
}

// newApp builds the detection pipeline and the HTTP sidecar from the
// holder's current configuration.
//
//nolint:gocyclo // sequential wiring
func newApp(holder *config.Holder) (*app, error) {
	cfg := holder.Config()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// === RESULT CACHE ===
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}
	store, err := cache.OpenStore(cfg.Cache.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	resultCache, err := cache.New(cache.Config{
		Capacity:        cfg.Cache.Capacity,
		TTL:             ttl,
		SweepInterval:   cfg.Cache.SweepInterval,
		ShutdownTimeout: cfg.Cache.ShutdownTimeout,
		AsyncPersist:    cfg.Cache.AsyncPersist,
	}, store, logging.WithComponent("cache"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}
	holder.OnReload(func(c *config.Config) {
		if ttl, err := c.CacheTTL(); err == nil {
			resultCache.SetTTL(ttl)
		}
	})

	// === LOOKUP PIPELINE ===
	limiter, err := ratelimit.New(ratelimit.Config{
		Strategy: cfg.RateLimit.Strategy,
		Limit:    cfg.RateLimit.Limit,
		Window:   cfg.RateLimit.Window,
	})
	if err != nil {
		_ = resultCache.Shutdown(context.Background())
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	lookupLogger := logging.WithComponent("lookup")
	breaker := vpn.BreakerConfig{
		Disabled:            cfg.Lookup.Breaker.Disabled,
		ConsecutiveFailures: cfg.Lookup.Breaker.ConsecutiveFailures,
		Timeout:             cfg.Lookup.Breaker.Timeout,
		Interval:            cfg.Lookup.Breaker.Interval,
	}
	clientConfig := func(base string) vpn.ClientConfig {
		return vpn.ClientConfig{
			BaseURL:        base,
			ConnectTimeout: cfg.Lookup.ConnectTimeout,
			ReadTimeout:    cfg.Lookup.ReadTimeout,
			UserAgent:      cfg.Lookup.UserAgent,
			Breaker:        breaker,
			Logger:         &lookupLogger,
		}
	}

	detector, err := vpn.NewDetector(vpn.DetectorConfig{
		Policy:     holder,
		Cache:      resultCache,
		Limiter:    limiter,
		ProxyCheck: vpn.NewProxyCheck(clientConfig(cfg.Lookup.ProxyCheckURL)),
		IPAPI:      vpn.NewIPAPI(clientConfig(cfg.Lookup.IPAPIURL)),
	}, logging.WithComponent("detector"))
	if err != nil {
		_ = resultCache.Shutdown(context.Background())
		return nil, fmt.Errorf("create detector: %w", err)
	}

	pool, err := vpn.NewPool(detector.CheckResult, vpn.PoolConfig{
		Workers:         cfg.Pool.Workers,
		QueueSize:       cfg.Pool.QueueSize,
		IdleExpiry:      cfg.Pool.IdleExpiry,
		ShutdownTimeout: cfg.Pool.ShutdownTimeout,
	}, logging.WithComponent("pool"))
	if err != nil {
		_ = resultCache.Shutdown(context.Background())
		return nil, fmt.Errorf("create pool: %w", err)
	}

	a := &app{
		holder:   holder,
		cache:    resultCache,
		detector: detector,
		pool:     pool,
	}

	// === WHITELIST & DETECTION LOG ===
	a.whitelist, err = whitelist.Open(filepath.Join(cfg.DataDir, whitelist.DefaultFile), logging.WithComponent("whitelist"))
	if err != nil {
		_ = a.close(context.Background())
		return nil, fmt.Errorf("open whitelist: %w", err)
	}
	a.detections = whitelist.NewDetectionLog(filepath.Join(cfg.DataDir, whitelist.DefaultLogFile))

	// === UPDATE CHECKER ===
	updateConfig := update.DefaultConfig()
	updateConfig.Enabled = cfg.Update.Enabled
	if cfg.Update.URL != "" {
		updateConfig.BaseURL = cfg.Update.URL
	}
	updateConfig.Interval = cfg.Update.Interval
	updateConfig.HTTPTimeout = cfg.Update.Timeout
	a.updates = update.New(updateConfig, logging.WithComponent("update"))

	// === HTTP SIDECAR ===
	handler, err := api.NewHandler(api.Deps{
		Checks:     pool,
		Mitigator:  detector,
		Whitelist:  a.whitelist,
		Detections: a.detections,
		Cache:      resultCache,
		Config:     holder,
		Updates:    a.updates,
	}, logging.WithComponent("api"))
	if err != nil {
		_ = a.close(context.Background())
		return nil, fmt.Errorf("create api handler: %w", err)
	}
	middleware := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})
	a.handler = api.NewRouter(handler, middleware).Setup()

	return a, nil
}

// register adds the app's services to the supervisor tree.
func (a *app) register(tree *supervisor.Tree) {
	cfg := a.holder.Config()

	tree.AddCoreService(services.NewWatchService("config-watcher", a.holder))
	tree.AddCoreService(services.NewRunnerService("update-checker", a.updates))

	server := func() services.HTTPServer {
		return &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      a.handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logging.WithComponent("http")))
}

// close drains the pool, then stops the cache sweeper and writes the final
// snapshot.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.cache.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
