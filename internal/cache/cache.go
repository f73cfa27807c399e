// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vpnshield/internal/metrics"
)

// Defaults for the result cache.
const (
	DefaultCapacity        = 10000
	DefaultTTL             = 12 * time.Hour
	DefaultSweepInterval   = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// ErrShutdownTimeout is returned by Shutdown when the sweeper did not stop in time.
var ErrShutdownTimeout = errors.New("cache: shutdown timed out waiting for sweeper")

// Entry is one cached verdict. Entries are immutable; a re-check replaces them.
type Entry struct {
	VPN        bool
	ObservedAt time.Time
}

// Config sizes the result cache.
type Config struct {
	// Capacity is the maximum number of entries.
	Capacity int

	// TTL is the lifetime of an entry. It can be changed later with SetTTL.
	TTL time.Duration

	// SweepInterval is the period of the background expiry sweep.
	// A negative value disables the sweeper.
	SweepInterval time.Duration

	// ShutdownTimeout bounds the wait for the sweeper in Shutdown.
	ShutdownTimeout time.Duration

	// AsyncPersist coalesces snapshot writes on a background goroutine.
	AsyncPersist bool
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:        DefaultCapacity,
		TTL:             DefaultTTL,
		SweepInterval:   DefaultSweepInterval,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Option customizes a ResultCache.
type Option func(*ResultCache)

// WithClock replaces time.Now. Tests use it to step across the TTL boundary.
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

// ResultCache maps IP addresses to their last confirmed verdict.
// It is safe for concurrent use.
type ResultCache struct {
	shards   [shardCount]shard
	size     atomic.Int64
	capacity int
	ttl      atomic.Int64

	// evictMu serializes every operation that can grow the cache so the
	// capacity check and the insert are atomic with respect to each other.
	evictMu sync.Mutex

	store     Persister
	persistMu sync.Mutex
	writer    *asyncWriter
	errLog    rate.Sometimes

	now    func() time.Time
	logger zerolog.Logger

	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// New creates a result cache, loads the snapshot from store and starts the
// background sweeper. A nil store keeps the cache in memory only. A snapshot
// that cannot be read is logged and the cache starts empty.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, store Persister, logger zerolog.Logger, opts ...Option) (*ResultCache, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Capacity < 0 || cfg.TTL < 0 {
		return nil, fmt.Errorf("cache: invalid config: capacity %d ttl %s", cfg.Capacity, cfg.TTL)
	}
	if store == nil {
		store = nopStore{}
	}

	c := &ResultCache{
		capacity:        cfg.Capacity,
		store:           store,
		errLog:          rate.Sometimes{First: 1, Interval: time.Minute},
		now:             time.Now,
		logger:          logger,
		sweepInterval:   cfg.SweepInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
		stopCh:          make(chan struct{}),
	}
	c.ttl.Store(int64(cfg.TTL))
	for i := range c.shards {
		c.shards[i].items = make(map[string]Entry)
	}
	for _, opt := range opts {
		opt(c)
	}

	c.load()

	if cfg.AsyncPersist {
		c.writer = newAsyncWriter(c.flush)
	}
	if c.sweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}
	return c, nil
}

// load restores the snapshot, dropping expired entries and, if the snapshot
// is larger than the capacity, the oldest surplus.
func (c *ResultCache) load() {
	entries, err := c.store.Load()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to load cache snapshot, starting empty")
		return
	}

	// Over capacity the heap drops the oldest surplus as it fills.
	h := newAgeHeap(c.capacity)
	for ip, e := range entries {
		h.Push(ip, e)
	}
	h.PopBefore(c.now().Add(-c.TTL()))

	live := h.All()
	for _, it := range live {
		c.shardFor(it.ip).items[it.ip] = it.entry
	}
	c.size.Store(int64(len(live)))
	metrics.CacheEntries.Set(float64(len(live)))

	c.logger.Info().
		Int("loaded", len(live)).
		Int("discarded", len(entries)-len(live)).
		Msg("Cache snapshot loaded")
}

// Lookup returns the cached verdict for ip. An expired entry is removed and
// reported absent.
func (c *ResultCache) Lookup(ip string) (vpn, ok bool) {
	sh := c.shardFor(ip)
	e, found := sh.get(ip)
	if !found {
		metrics.RecordCacheLookup(false)
		return false, false
	}

	if c.expired(e, c.now()) {
		if sh.deleteIf(ip, e.ObservedAt) {
			c.size.Add(-1)
			metrics.RecordCacheEviction("expired", 1)
			c.mutated()
		}
		metrics.RecordCacheLookup(false)
		return false, false
	}

	metrics.RecordCacheLookup(true)
	return e.VPN, true
}

// Store records a verdict for ip. At or above capacity the oldest tenth of
// entries (at least one) is evicted first.
func (c *ResultCache) Store(ip string, vpn bool) {
	e := Entry{VPN: vpn, ObservedAt: c.now()}
	sh := c.shardFor(ip)

	if c.size.Load() < int64(c.capacity) && sh.replace(ip, e) {
		c.mutated()
		return
	}

	c.evictMu.Lock()
	if c.size.Load() >= int64(c.capacity) {
		c.evictOldestLocked()
	}
	if sh.put(ip, e) {
		c.size.Add(1)
	}
	c.evictMu.Unlock()

	c.mutated()
}

// evictOldestLocked removes the oldest capacity/10 entries. Caller holds evictMu.
func (c *ResultCache) evictOldestLocked() {
	n := c.capacity / 10
	if n < 1 {
		n = 1
	}

	all := make([]keyedEntry, 0, c.size.Load())
	for i := range c.shards {
		all = c.shards[i].appendTo(all)
	}

	h := heapFrom(all)
	removed := 0
	for i := 0; i < n; i++ {
		it := h.Pop()
		if it == nil {
			break
		}
		if c.shardFor(it.ip).deleteIf(it.ip, it.entry.ObservedAt) {
			c.size.Add(-1)
			removed++
		}
	}
	metrics.RecordCacheEviction("capacity", removed)
	c.logger.Debug().Int("evicted", removed).Msg("Cache at capacity, evicted oldest entries")
}

// Sweep removes every expired entry and persists if anything was removed.
// It returns the number of entries removed.
func (c *ResultCache) Sweep() int {
	now := c.now()
	ttl := c.TTL()

	removed := 0
	for i := range c.shards {
		removed += c.shards[i].removeOlderThan(now.Add(-ttl))
	}
	if removed == 0 {
		return 0
	}

	c.size.Add(int64(-removed))
	metrics.RecordCacheEviction("expired", removed)
	c.mutated()
	return removed
}

// Clear removes every entry and persists the empty cache.
func (c *ResultCache) Clear() {
	c.evictMu.Lock()
	removed := 0
	for i := range c.shards {
		removed += c.shards[i].clear()
	}
	c.size.Add(int64(-removed))
	c.evictMu.Unlock()

	metrics.RecordCacheEviction("clear", removed)
	c.mutated()
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *ResultCache) Len() int {
	return int(c.size.Load())
}

// Capacity returns the maximum number of entries.
func (c *ResultCache) Capacity() int {
	return c.capacity
}

// TTL returns the current entry lifetime.
func (c *ResultCache) TTL() time.Duration {
	return time.Duration(c.ttl.Load())
}

// SetTTL changes the entry lifetime. Existing entries are judged by the new
// value from the next lookup or sweep.
func (c *ResultCache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl.Store(int64(ttl))
	}
}

// Snapshot returns a copy of every entry.
func (c *ResultCache) Snapshot() map[string]Entry {
	out := make(map[string]Entry, c.size.Load())
	for i := range c.shards {
		c.shards[i].copyInto(out)
	}
	return out
}

// Shutdown stops the sweeper, waiting at most the configured shutdown
// timeout or until ctx is done, then writes the final snapshot and closes
// the store. The final write happens even if the wait timed out.
func (c *ResultCache) Shutdown(ctx context.Context) error {
	var waitErr error
	c.stopOnce.Do(func() {
		close(c.stopCh)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(c.shutdownTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			waitErr = ErrShutdownTimeout
		case <-ctx.Done():
			waitErr = fmt.Errorf("cache: shutdown: %w", ctx.Err())
		}

		if c.writer != nil {
			c.writer.stop()
		}
		c.flush()

		if err := c.store.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close cache store")
		}
		c.logger.Info().Int("entries", c.Len()).Msg("Cache shut down")
	})
	return waitErr
}

func (c *ResultCache) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug().Int("removed", n).Msg("Cache sweep removed expired entries")
			}
		}
	}
}

func (c *ResultCache) expired(e Entry, now time.Time) bool {
	return now.Sub(e.ObservedAt) > c.TTL()
}

// mutated runs after every mutation: it updates the size gauge and persists.
func (c *ResultCache) mutated() {
	metrics.CacheEntries.Set(float64(c.size.Load()))
	if c.writer != nil {
		c.writer.notify()
		return
	}
	c.flush()
}

// flush writes the current snapshot. The snapshot is taken under persistMu so
// that an older snapshot never overwrites a newer one.
func (c *ResultCache) flush() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	start := time.Now()
	err := c.store.Save(c.Snapshot())
	metrics.RecordPersist(time.Since(start), err)
	if err != nil {
		c.errLog.Do(func() {
			c.logger.Error().Err(err).Msg("Failed to persist cache snapshot, continuing in memory")
		})
	}
}
