// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package main is the entry point for the VPNShield detection sidecar.
//
// The sidecar runs next to a game server proxy and answers "is this address
// a VPN or proxy exit?" over loopback HTTP. It loads configuration, builds
// the detection pipeline (rate limiter, result cache, proxycheck.io and
// ip-api.com clients, worker pool) and supervises the HTTP server, the
// config file watcher and the update checker with suture.
//
// # Configuration
//
// Configuration is loaded via koanf v2 with layered sources (highest priority wins):
//   - Environment variables (PROXYCHECK_API_KEY, HTTP_ADDR, LOG_LEVEL, ...)
//   - Config file (VPNSHIELD_CONFIG, config.yml, config.yaml, /etc/vpnshield/config.yml)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervisor tree, then the worker pool is
// drained and the cache snapshot is written, all within five seconds.
//
// # Example Usage
//
//	export PROXYCHECK_API_KEY=your-key
//	./vpnshield
//	curl 'http://127.0.0.1:8765/v1/check?ip=203.0.113.9&username=steve'
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/vpnshield/internal/config"
	"github.com/tomtom215/vpnshield/internal/logging"
	"github.com/tomtom215/vpnshield/internal/supervisor"
)

// shutdownGrace bounds pool draining and the final cache flush.
const shutdownGrace = 5 * time.Second

func main() {
	path := config.FindConfigFile()
	cfg, err := config.Load(path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("config", path).
		Str("data_dir", cfg.DataDir).
		Str("cache_backend", cfg.Cache.Backend).
		Str("rate_limit", cfg.RateLimit.Strategy).
		Msg("Starting VPNShield")

	holder, err := config.NewHolder(path, cfg, logging.WithComponent("config"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid detection policy")
	}
	cfg.WarnIfUnconfigured(logging.Logger())

	a, err := newApp(holder)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize detection pipeline")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	a.register(tree)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", cfg.Server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := a.close(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Shutdown incomplete")
	}

	logging.Info().
		Int64("mitigations", a.detector.Mitigations()).
		Msg("VPNShield stopped gracefully")
}
