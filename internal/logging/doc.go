// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package logging provides centralized zerolog-based structured logging for VPNShield.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for production, console output for development
//   - Component loggers that are handed to constructors explicitly
//   - Context-aware logging with correlation ID propagation per check
//   - slog adapter for Suture v4 integration
//   - Redaction helpers for API keys and player names
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	log := logging.WithComponent("detector")
//	log.Info().Str("ip", ip).Bool("vpn", verdict).Msg("Check complete")
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Debug().Msg("Primary lookup indeterminate")
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Never log the proxycheck.io API key or full request URLs carrying it; use
// SanitizeToken and SanitizeURL.
package logging
