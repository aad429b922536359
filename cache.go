package phonedata

import (
	"sync"
	"sync/atomic"
)

// CacheStats reports result cache usage.
type CacheStats struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	Frozen   bool    `json:"frozen"`
}

// resultCache maps the exact input string to a previously resolved record.
//
// It fills until capacity and then stops accepting new keys; nothing is ever
// evicted. Two inputs sharing a prefix ("1808683" and "18086834111") occupy
// separate entries. Only successful lookups are stored.
type resultCache struct {
	mu       sync.Mutex
	entries  map[string]PhoneRecord
	capacity int

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newResultCache(capacity int) *resultCache {
	return &resultCache{
		entries:  make(map[string]PhoneRecord, min(capacity, 4096)),
		capacity: capacity,
	}
}

// get returns the cached record for number.
func (c *resultCache) get(number string) (PhoneRecord, bool) {
	c.mu.Lock()
	rec, ok := c.entries[number]
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return rec, ok
}

// put stores rec under number unless the cache is full. Overwriting an
// existing key is allowed even when full, since it does not grow the map.
func (c *resultCache) put(number string, rec PhoneRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[number]; !exists && len(c.entries) >= c.capacity {
		return
	}
	c.entries[number] = rec
}

func (c *resultCache) stats() CacheStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:  n,
		Capacity: c.capacity,
		Hits:     hits,
		Misses:   misses,
		HitRatio: ratio,
		Frozen:   n >= c.capacity,
	}
}
