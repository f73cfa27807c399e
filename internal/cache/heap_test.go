// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package cache

import (
	"fmt"
	"testing"
	"time"
)

var heapBase = time.UnixMilli(1_700_000_000_000)

func at(sec int) Entry {
	return Entry{ObservedAt: heapBase.Add(time.Duration(sec) * time.Second)}
}

func TestAgeHeap_PopOrder(t *testing.T) {
	t.Parallel()

	h := newAgeHeap(0)
	for _, sec := range []int{5, 1, 9, 3, 7, 0, 8, 2, 6, 4} {
		h.Push(fmt.Sprintf("10.0.0.%d", sec), at(sec))
	}
	if h.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", h.Len())
	}
	for want := 0; want < 10; want++ {
		it := h.Pop()
		if it == nil || it.ip != fmt.Sprintf("10.0.0.%d", want) {
			t.Fatalf("Pop() #%d = %+v, want 10.0.0.%d", want, it, want)
		}
	}
	if h.Pop() != nil {
		t.Error("Pop() on empty heap should return nil")
	}
}

func TestAgeHeap_PushUpdatesExisting(t *testing.T) {
	t.Parallel()

	h := newAgeHeap(0)
	h.Push("a", at(1))
	h.Push("b", at(2))
	h.Push("a", Entry{VPN: true, ObservedAt: at(3).ObservedAt})

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	if it := h.Pop(); it.ip != "b" {
		t.Errorf("oldest = %s, want b after a was refreshed", it.ip)
	}
	if it := h.Pop(); it.ip != "a" || !it.entry.VPN {
		t.Errorf("second = %+v, want refreshed a", it)
	}
}

func TestAgeHeap_MaxLenEvictsOldest(t *testing.T) {
	t.Parallel()

	h := newAgeHeap(3)
	var evicted []string
	for _, sec := range []int{4, 0, 2, 5, 1, 3} {
		if it := h.Push(fmt.Sprintf("ip%d", sec), at(sec)); it != nil {
			evicted = append(evicted, it.ip)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	kept := map[string]bool{}
	for _, it := range h.All() {
		kept[it.ip] = true
	}
	for _, ip := range []string{"ip3", "ip4", "ip5"} {
		if !kept[ip] {
			t.Errorf("expected newest entry %s to be kept, got %v", ip, kept)
		}
	}
	if len(evicted) != 3 {
		t.Errorf("evicted %v, want 3 items", evicted)
	}
}

func TestAgeHeap_PopBefore(t *testing.T) {
	t.Parallel()

	h := newAgeHeap(0)
	for sec := 0; sec < 6; sec++ {
		h.Push(fmt.Sprintf("ip%d", sec), at(sec))
	}

	got := h.PopBefore(at(3).ObservedAt)
	if len(got) != 3 {
		t.Fatalf("PopBefore() returned %d items, want 3", len(got))
	}
	for i, it := range got {
		if it.ip != fmt.Sprintf("ip%d", i) {
			t.Errorf("PopBefore()[%d] = %s, want ip%d", i, it.ip, i)
		}
	}
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (boundary entry kept)", h.Len())
	}
}

func TestHeapFrom(t *testing.T) {
	t.Parallel()

	var all []keyedEntry
	for sec := 9; sec >= 0; sec-- {
		all = append(all, keyedEntry{ip: fmt.Sprintf("ip%d", sec), entry: at(sec)})
	}
	h := heapFrom(all)
	for want := 0; want < 10; want++ {
		if it := h.Pop(); it.ip != fmt.Sprintf("ip%d", want) {
			t.Fatalf("Pop() #%d = %s, want ip%d", want, it.ip, want)
		}
	}
}
