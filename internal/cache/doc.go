// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

/*
Package cache provides the VPNShield result cache: a capacity- and
time-bounded mapping from IP address to the last confirmed verdict.

# Overview

The cache provides:
  - 16 shards indexed by xxh3 so unrelated IPs do not contend on one lock
  - TTL expiry on read (an expired entry is removed and reported absent)
  - Periodic background sweeps (default every 5 seconds)
  - Capacity eviction of the oldest tenth of entries when full
  - A snapshot written after every mutation and on shutdown

# TTL Boundary

An entry whose age is exactly the TTL is still live. Age is measured from the
time the verdict was stored.

# Persistence

Two snapshot backends implement Persister:

  - FileStore: a JSON document (ip_cache.json) rewritten through a temporary
    file and rename, in the form {"<ip>":{"vpn":true,"timestamp":<unix ms>}}
  - BadgerStore: a badger v4 directory holding the same records

Persistence failures are logged and counted; the cache keeps operating in
memory. By default every mutation writes the snapshot synchronously. With
Config.AsyncPersist a background writer coalesces bursts of mutations into one
write.

# Usage Example

	store := cache.NewFileStore("plugins/vpnshield/ip_cache.json")
	c, err := cache.New(cache.DefaultConfig(), store, logging.WithComponent("cache"))
	if err != nil {
	    return err
	}
	defer c.Shutdown(context.Background())

	if vpn, ok := c.Lookup(ip); ok {
	    return vpn
	}
	c.Store(ip, verdict)
*/
package cache
