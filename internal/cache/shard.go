// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package cache

import (
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

const shardCount = 16

type shard struct {
	mu    sync.RWMutex
	items map[string]Entry
}

type keyedEntry struct {
	ip    string
	entry Entry
}

func (c *ResultCache) shardFor(ip string) *shard {
	return &c.shards[xxh3.HashString(ip)%shardCount]
}

func (s *shard) get(ip string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[ip]
	return e, ok
}

// replace overwrites ip only if it is already present.
func (s *shard) replace(ip string, e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[ip]; !ok {
		return false
	}
	s.items[ip] = e
	return true
}

// put inserts or replaces ip and reports whether the key is new.
func (s *shard) put(ip string, e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.items[ip]
	s.items[ip] = e
	return !existed
}

// deleteIf removes ip only if it still holds the entry observed at observedAt,
// so a concurrent re-check is never discarded.
func (s *shard) deleteIf(ip string, observedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[ip]
	if !ok || !e.ObservedAt.Equal(observedAt) {
		return false
	}
	delete(s.items, ip)
	return true
}

func (s *shard) removeOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for ip, e := range s.items {
		if e.ObservedAt.Before(cutoff) {
			delete(s.items, ip)
			removed++
		}
	}
	return removed
}

func (s *shard) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	s.items = make(map[string]Entry)
	return n
}

func (s *shard) appendTo(dst []keyedEntry) []keyedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ip, e := range s.items {
		dst = append(dst, keyedEntry{ip: ip, entry: e})
	}
	return dst
}

func (s *shard) copyInto(dst map[string]Entry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ip, e := range s.items {
		dst[ip] = e
	}
}
