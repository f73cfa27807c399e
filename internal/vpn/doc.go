// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package vpn decides whether a connecting IP address is a VPN or proxy exit
// node.
//
// # Overview
//
// The detection pipeline consists of:
//
//   - Detector: consults the result cache, drives the primary and fallback
//     lookups and applies the failure policy
//   - ProxyCheck: client for proxycheck.io (API key, daily quota)
//   - IPAPI: client for ip-api.com (free, proxy flag)
//   - Pool: bounded worker pool for asynchronous checks
//
// Every outbound lookup first acquires the shared rate limiter. Each lookup
// client sits behind its own circuit breaker; an open breaker answers
// Indeterminate without touching the network.
//
// # Verdicts
//
// Lookup clients return a tri-state Verdict. VerdictVPN and VerdictClean are
// definite and are cached. VerdictIndeterminate means the service could not
// answer (transport error, non-2xx status, malformed body, missing field or
// open breaker) and is never cached.
//
// # Failure Policy
//
// When neither service gives a definite answer, Check returns
// !Policy.AllowJoinOnFailure: the connection is admitted when the policy
// allows joins on failure and refused otherwise. The same applies to a fault
// recovered inside the pipeline. Check never returns an error.
//
// # Usage
//
//	limiter, _ := ratelimit.New(ratelimit.DefaultConfig())
//	det := vpn.NewDetector(vpn.DetectorConfig{
//	    Policy:     holder,
//	    Cache:      resultCache,
//	    Limiter:    limiter,
//	    ProxyCheck: vpn.NewProxyCheck(vpn.ClientConfig{}),
//	    IPAPI:      vpn.NewIPAPI(vpn.ClientConfig{}),
//	}, logging.WithComponent("detector"))
//
//	if det.Check(ctx, "203.0.113.7") {
//	    // refuse the connection
//	}
package vpn
