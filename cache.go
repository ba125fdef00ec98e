package cachewire

import (
	"container/list"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultMaxEntries is used when a cache is created without a positive
// MaxEntries.
const DefaultMaxEntries = 100

// CacheConfig bounds a cache instance. MaxEntries is the only required
// field; TTL and SizeLimit are enforced only when positive.
type CacheConfig[K comparable, V any] struct {
	// MaxEntries is the entry-count ceiling (> 0).
	MaxEntries int

	// TTL expires entries this long after their last write. Zero disables expiry.
	TTL time.Duration

	// SizeLimit caps the total estimated bytes held. Zero disables size accounting.
	SizeLimit int64

	// OnEvict is invoked for every removal except Clear: explicit deletes,
	// TTL expiry and capacity or size eviction.
	OnEvict func(key K, value V)

	// Sizer estimates entry sizes. Defaults to DefaultSizer.
	Sizer Sizer[V]

	// Clock supplies time for TTL and age reporting. Defaults to SystemClock.
	Clock Clock
}

type cacheEntry[K comparable, V any] struct {
	key         K
	value       V
	writtenAt   time.Time
	accessCount int64
	size        int64
	elem        *list.Element
}

// Cache is a bounded key/value store with LRU ordering, optional TTL and an
// optional memory-size ceiling. It is safe for concurrent use; each instance
// is guarded by its own mutex and instances are fully independent.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	name      string
	cfg       CacheConfig[K, V]
	entries   map[K]*cacheEntry[K, V]
	order     *list.List // front = LRU, back = MRU; always exactly the live key set
	totalSize int64
	hits      int64
	misses    int64
	clock     Clock
	sizer     Sizer[V]
}

// NewCache creates a bounded cache with the given name and config.
func NewCache[K comparable, V any](name string, cfg CacheConfig[K, V]) *Cache[K, V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	sizer := cfg.Sizer
	if sizer == nil {
		sizer = DefaultSizer[V]()
	}
	return &Cache[K, V]{
		name:    name,
		cfg:     cfg,
		entries: make(map[K]*cacheEntry[K, V]),
		order:   list.New(),
		clock:   clock,
		sizer:   sizer,
	}
}

// Name returns the cache's name.
func (c *Cache[K, V]) Name() string { return c.name }

// Get returns the value for key. A missing or TTL-expired key is a miss;
// expiry evicts the entry and fires OnEvict. A hit refreshes the entry's LRU
// position and access count.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return zero, false
	}
	if c.expiredLocked(e) {
		c.unlinkLocked(e)
		c.misses++
		c.mu.Unlock()
		c.notifyEvict(e)
		return zero, false
	}
	c.order.MoveToBack(e.elem)
	e.accessCount++
	c.hits++
	value := e.value
	c.mu.Unlock()
	return value, true
}

// Set stores value under key. Existing keys are updated in place (value,
// write time and size) and moved to the MRU position. New keys evict
// least-recently-used entries until both the entry-count and size bounds
// hold; eviction stops once nothing else can be removed.
func (c *Cache[K, V]) Set(key K, value V) {
	size := c.sizer.EstimateSize(value)
	now := c.clock.Now()

	var evicted []*cacheEntry[K, V]

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.totalSize += size - e.size
		e.value = value
		e.size = size
		e.writtenAt = now
		c.order.MoveToBack(e.elem)
		// The grown entry may push the total over the size limit.
		for c.cfg.SizeLimit > 0 && c.totalSize > c.cfg.SizeLimit {
			lru := c.order.Front()
			if lru == nil || lru.Value.(*cacheEntry[K, V]) == e {
				break
			}
			ev := lru.Value.(*cacheEntry[K, V])
			c.unlinkLocked(ev)
			evicted = append(evicted, ev)
		}
	} else {
		for len(c.entries) >= c.cfg.MaxEntries ||
			(c.cfg.SizeLimit > 0 && c.totalSize+size > c.cfg.SizeLimit) {
			lru := c.order.Front()
			if lru == nil {
				break
			}
			ev := lru.Value.(*cacheEntry[K, V])
			c.unlinkLocked(ev)
			evicted = append(evicted, ev)
		}
		e := &cacheEntry[K, V]{key: key, value: value, writtenAt: now, size: size}
		e.elem = c.order.PushBack(e)
		c.entries[key] = e
		c.totalSize += size
	}
	c.mu.Unlock()

	for _, ev := range evicted {
		c.notifyEvict(ev)
	}
}

// Delete removes key and fires OnEvict. It reports whether an entry was removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.unlinkLocked(e)
	c.mu.Unlock()
	c.notifyEvict(e)
	return true
}

// Has reports whether key is present and unexpired. It does not update LRU
// order, access counts or hit/miss statistics.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && !c.expiredLocked(e)
}

// Clear removes all entries without invoking OnEvict: it is a bulk reset,
// not an eviction. Hit/miss counters are preserved.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]*cacheEntry[K, V])
	c.order.Init()
	c.totalSize = 0
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a point-in-time snapshot of the cache.
func (c *Cache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	stats := CacheStats{
		Name:           c.name,
		Entries:        len(c.entries),
		MaxEntries:     c.cfg.MaxEntries,
		TotalSizeBytes: c.totalSize,
		SizeLimitBytes: c.cfg.SizeLimit,
		Hits:           c.hits,
		Misses:         c.misses,
	}
	stats.Utilization = float64(len(c.entries)) / float64(c.cfg.MaxEntries) * 100

	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total) * 100
	}

	stats.EntryBreakdown = make([]EntryStats, 0, len(c.entries))
	for _, e := range c.entries {
		if stats.OldestWrite.IsZero() || e.writtenAt.Before(stats.OldestWrite) {
			stats.OldestWrite = e.writtenAt
		}
		if e.writtenAt.After(stats.NewestWrite) {
			stats.NewestWrite = e.writtenAt
		}
		stats.EntryBreakdown = append(stats.EntryBreakdown, EntryStats{
			Key:         fmt.Sprintf("%v", e.key),
			AccessCount: e.accessCount,
			Age:         now.Sub(e.writtenAt),
			SizeBytes:   e.size,
		})
	}
	sort.Slice(stats.EntryBreakdown, func(i, j int) bool {
		return stats.EntryBreakdown[i].AccessCount > stats.EntryBreakdown[j].AccessCount
	})

	return stats
}

// expiredLocked reports TTL expiry; an entry is expired once its age reaches
// the TTL (age >= TTL).
func (c *Cache[K, V]) expiredLocked(e *cacheEntry[K, V]) bool {
	return c.cfg.TTL > 0 && c.clock.Now().Sub(e.writtenAt) >= c.cfg.TTL
}

func (c *Cache[K, V]) unlinkLocked(e *cacheEntry[K, V]) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
	c.totalSize -= e.size
}

func (c *Cache[K, V]) notifyEvict(e *cacheEntry[K, V]) {
	if c.cfg.OnEvict != nil {
		c.cfg.OnEvict(e.key, e.value)
	}
}

// CacheStats is a snapshot of one cache instance.
type CacheStats struct {
	Name           string
	Entries        int
	MaxEntries     int
	Utilization    float64 // percent of MaxEntries in use
	TotalSizeBytes int64
	SizeLimitBytes int64
	Hits           int64
	Misses         int64
	HitRate        float64 // percent, 0 when no lookups yet
	OldestWrite    time.Time
	NewestWrite    time.Time
	EntryBreakdown []EntryStats // sorted by access count, descending
}

// EntryStats describes one live entry in a stats snapshot.
type EntryStats struct {
	Key         string
	AccessCount int64
	Age         time.Duration
	SizeBytes   int64
}
