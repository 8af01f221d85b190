package nodestore

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/LeJamon/gotrie/internal/types"
)

// Cache is an expiring LRU read cache in front of a backend. Records are
// immutable, so a cached node can never go stale; TTL only bounds memory
// held by cold entries.
type Cache struct {
	lru *expirable.LRU[types.Hash256, *Node]

	maxSize int
	ttl     time.Duration

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewCache creates a cache holding at most maxSize nodes for at most ttl.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	c := &Cache{
		maxSize: maxSize,
		ttl:     ttl,
	}
	c.lru = expirable.NewLRU[types.Hash256, *Node](maxSize, func(types.Hash256, *Node) {
		atomic.AddUint64(&c.evictions, 1)
	}, ttl)
	return c
}

// Get retrieves a node from the cache.
func (c *Cache) Get(hash types.Hash256) (*Node, bool) {
	node, found := c.lru.Get(hash)
	if !found {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return node, true
}

// Put stores a node in the cache.
func (c *Cache) Put(node *Node) {
	if node == nil {
		return
	}
	c.lru.Add(node.Hash, node)
}

// Remove removes a node from the cache.
func (c *Cache) Remove(hash types.Hash256) {
	c.lru.Remove(hash)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Sweep is kept for interface symmetry; the underlying cache expires
// entries on its own.
func (c *Cache) Sweep() int {
	return 0
}

// Size returns the current number of items in the cache.
func (c *Cache) Size() int {
	return c.lru.Len()
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:        atomic.LoadUint64(&c.hits),
		Misses:      atomic.LoadUint64(&c.misses),
		Evictions:   atomic.LoadUint64(&c.evictions),
		CurrentSize: c.lru.Len(),
		MaxSize:     c.maxSize,
		TTL:         c.ttl,
	}
}

// CacheStats holds statistics about cache performance.
type CacheStats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	CurrentSize int
	MaxSize     int
	TTL         time.Duration
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// String returns a string representation of the cache statistics.
func (s CacheStats) String() string {
	return fmt.Sprintf(`Cache Statistics:
  Size: %d/%d items
  Hits: %d, Misses: %d (%.2f%% hit rate)
  Evictions: %d
  TTL: %v`,
		s.CurrentSize, s.MaxSize,
		s.Hits, s.Misses, s.HitRate(),
		s.Evictions,
		s.TTL)
}
