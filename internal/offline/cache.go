// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package offline

import (
	"container/list"
	"sync"
	"time"
)

// resultCache retains recently processed batch results keyed by
// batchId, bounded both by entry count and by age. A device that
// retries a batch after a dropped ack hits this cache and gets the
// original outcome back instead of reprocessing; a batchId old enough
// to have aged out is by definition from a different session of play,
// so reprocessing it is the correct behavior at that point.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	batchID   string
	result    BatchResult
	expiresAt time.Time
}

const (
	defaultCacheCapacity = 100
	defaultCacheTTL      = time.Hour
)

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// get returns the cached result for batchID if present and unexpired,
// refreshing its recency.
func (c *resultCache) get(batchID string) (BatchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[batchID]
	if !ok {
		return BatchResult{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, batchID)
		return BatchResult{}, false
	}
	c.order.MoveToFront(elem)
	return entry.result, true
}

// add stores result under batchID, evicting the least recently used
// entry if the cache is full.
func (c *resultCache) add(batchID string, result BatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if elem, ok := c.entries[batchID]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.result = result
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).batchID)
		}
	}

	c.entries[batchID] = c.order.PushFront(&cacheEntry{
		batchID:   batchID,
		result:    result,
		expiresAt: expiresAt,
	})
}

// size returns the current entry count, for tests and metrics.
func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
