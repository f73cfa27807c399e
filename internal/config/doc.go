// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

/*
Package config loads VPNShield configuration.

# Configuration Sources

Koanf v2 layers three sources, later ones overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file, located through VPNSHIELD_CONFIG or the
    DefaultConfigPaths search list
 3. Environment variables with explicit names such as PROXYCHECK_API_KEY

The detection settings keep the flat, dash-separated keys of the plugin
configuration file:

	proxycheck-api-key: "YOUR_PROXYCHECK_API_KEY"
	use-primary-service: true        # true: proxycheck.io first, false: ip-api.com first
	enable-fallback-service: true
	allow-join-on-api-failure: true
	enable-cache: true
	cache-duration: 12
	cache-time-unit: hours           # seconds, minutes, hours or days
	enable-debug: false

Operational settings live in nested sections (cache, rate_limit, lookup,
pool, server, update, logging).

# Policy Snapshots

Config.Policy converts the detection settings into an immutable
*vpn.Policy. Holder publishes the current snapshot through an
atomic.Pointer so a reload never tears a check in progress.

# Hot Reload

WatchConfigFile wires the koanf file provider's watcher to a callback,
normally Holder.Reload.
*/
package config
