package cache

import (
	"slices"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/wikiner/internal/model"
)

// Stats counts cache traffic
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// MemoryCache keeps lookup answers in process memory until they expire.
// Values are copied in and out so callers may modify what they get.
type MemoryCache struct {
	items  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a cache whose entries live for ttl. A zero ttl
// keeps entries for the life of the process.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cleanup := ttl
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanup = 0
	}
	return &MemoryCache{items: gocache.New(ttl, cleanup)}
}

// Get returns the related classes stored under key
func (c *MemoryCache) Get(key Key) ([]model.ClassID, bool) {
	v, found := c.items.Get(string(key))
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return slices.Clone(v.([]model.ClassID)), true
}

// Put stores related under key with the default expiry
func (c *MemoryCache) Put(key Key, related []model.ClassID) {
	c.items.SetDefault(string(key), slices.Clone(related))
}

// Flush drops every entry; counters are kept
func (c *MemoryCache) Flush() {
	c.items.Flush()
}

// Stats reports hits, misses and the current entry count, which may include
// expired entries not yet evicted
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.items.ItemCount(),
	}
}
