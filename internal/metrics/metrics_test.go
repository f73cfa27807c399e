// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCheck(t *testing.T) {
	before := testutil.ToFloat64(ChecksTotal.WithLabelValues("cache", "vpn"))
	RecordCheck("cache", true, time.Millisecond)
	after := testutil.ToFloat64(ChecksTotal.WithLabelValues("cache", "vpn"))

	if after != before+1 {
		t.Errorf("expected checks counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordLookup(t *testing.T) {
	before := testutil.ToFloat64(LookupRequests.WithLabelValues("ip-api", "indeterminate"))
	RecordLookup("ip-api", "indeterminate", 20*time.Millisecond)
	after := testutil.ToFloat64(LookupRequests.WithLabelValues("ip-api", "indeterminate"))

	if after != before+1 {
		t.Errorf("expected lookup counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits)
	misses := testutil.ToFloat64(CacheMisses)

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	if got := testutil.ToFloat64(CacheHits) - hits; got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses) - misses; got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
}

func TestRecordCacheEviction_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(CacheEvictions.WithLabelValues("expired"))
	RecordCacheEviction("expired", 0)
	RecordCacheEviction("expired", 3)

	if got := testutil.ToFloat64(CacheEvictions.WithLabelValues("expired")) - before; got != 3 {
		t.Errorf("expected 3 evictions, got %v", got)
	}
}

func TestRecordPersist(t *testing.T) {
	before := testutil.ToFloat64(CachePersistErrors)
	RecordPersist(time.Millisecond, nil)
	RecordPersist(time.Millisecond, errors.New("disk full"))

	if got := testutil.ToFloat64(CachePersistErrors) - before; got != 1 {
		t.Errorf("expected 1 persist error, got %v", got)
	}
}

func TestRecordLimiterWait(t *testing.T) {
	before := testutil.ToFloat64(LimiterAcquisitions)
	RecordLimiterWait(0)
	RecordLimiterWait(300 * time.Millisecond)

	if got := testutil.ToFloat64(LimiterAcquisitions) - before; got != 2 {
		t.Errorf("expected 2 acquisitions, got %v", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/v1/check", "200"))
	RecordAPIRequest("GET", "/v1/check", "200", 5*time.Millisecond)

	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/v1/check", "200")) - before; got != 1 {
		t.Errorf("expected 1 request, got %v", got)
	}
}
