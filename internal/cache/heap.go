// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package cache

import "time"

// ageItem is one verdict in an ageHeap, keyed by IP.
type ageItem struct {
	ip    string
	entry Entry
	index int // position in the heap array, used for O(log n) updates
}

// ageHeap is a min-heap of verdicts ordered by ObservedAt, oldest at the root.
// It keeps a parallel map for O(1) lookup by IP.
//
// It is used for:
//   - Capacity eviction (pop the oldest tenth)
//   - Snapshot load (drop expired entries, then evict oldest when over capacity)
//
// An ageHeap is built for one operation and is not safe for concurrent use.
type ageHeap struct {
	heap   []*ageItem
	byIP   map[string]*ageItem
	maxLen int // maximum entries (0 = unlimited)
}

// newAgeHeap creates an empty heap with optional maximum length.
func newAgeHeap(maxLen int) *ageHeap {
	return &ageHeap{
		heap:   make([]*ageItem, 0),
		byIP:   make(map[string]*ageItem),
		maxLen: maxLen,
	}
}

// heapFrom builds an unbounded heap over entries in O(n).
func heapFrom(entries []keyedEntry) *ageHeap {
	h := &ageHeap{
		heap: make([]*ageItem, 0, len(entries)),
		byIP: make(map[string]*ageItem, len(entries)),
	}
	for _, ke := range entries {
		if existing, ok := h.byIP[ke.ip]; ok {
			existing.entry = ke.entry
			continue
		}
		item := &ageItem{ip: ke.ip, entry: ke.entry, index: len(h.heap)}
		h.heap = append(h.heap, item)
		h.byIP[ke.ip] = item
	}
	for i := len(h.heap)/2 - 1; i >= 0; i-- {
		h.bubbleDown(i)
	}
	return h
}

// Push adds a verdict. An existing IP is updated in place. Returns the
// evicted oldest item if the heap was at capacity, nil otherwise.
func (h *ageHeap) Push(ip string, e Entry) *ageItem {
	if existing, ok := h.byIP[ip]; ok {
		existing.entry = e
		h.fix(existing.index)
		return nil
	}

	item := &ageItem{ip: ip, entry: e, index: len(h.heap)}
	h.heap = append(h.heap, item)
	h.byIP[ip] = item
	h.bubbleUp(item.index)

	if h.maxLen > 0 && len(h.heap) > h.maxLen {
		return h.popOldest()
	}
	return nil
}

// Pop removes and returns the oldest item, or nil if the heap is empty.
func (h *ageHeap) Pop() *ageItem {
	return h.popOldest()
}

// PopBefore removes and returns every item observed before t.
func (h *ageHeap) PopBefore(t time.Time) []*ageItem {
	var items []*ageItem
	for len(h.heap) > 0 && h.heap[0].entry.ObservedAt.Before(t) {
		items = append(items, h.popOldest())
	}
	return items
}

// Len returns the number of items in the heap.
func (h *ageHeap) Len() int {
	return len(h.heap)
}

// All returns every item in no particular order.
func (h *ageHeap) All() []*ageItem {
	items := make([]*ageItem, len(h.heap))
	copy(items, h.heap)
	return items
}

func (h *ageHeap) popOldest() *ageItem {
	if len(h.heap) == 0 {
		return nil
	}
	return h.removeAt(0)
}

func (h *ageHeap) removeAt(i int) *ageItem {
	n := len(h.heap) - 1
	item := h.heap[i]
	delete(h.byIP, item.ip)

	if i == n {
		h.heap = h.heap[:n]
		return item
	}

	h.heap[i] = h.heap[n]
	h.heap[i].index = i
	h.heap = h.heap[:n]
	h.fix(i)
	return item
}

// fix restores heap order after the item at i changed.
func (h *ageHeap) fix(i int) {
	if h.bubbleUp(i) {
		return
	}
	h.bubbleDown(i)
}

func (h *ageHeap) less(i, j int) bool {
	return h.heap[i].entry.ObservedAt.Before(h.heap[j].entry.ObservedAt)
}

// bubbleUp reports whether the item moved.
func (h *ageHeap) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *ageHeap) bubbleDown(i int) {
	n := len(h.heap)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.swap(i, smallest)
		i = smallest
	}
}

func (h *ageHeap) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.heap[i].index = i
	h.heap[j].index = j
}
