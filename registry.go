package cachewire

import (
	"sort"
	"sync"
	"time"
)

// Names of the pre-registered caches other components rely on.
const (
	// CachePageText holds extracted page text: 50 entries, 10 MB soft limit,
	// no TTL — entries live until capacity-evicted.
	CachePageText = "page-text"

	// CacheHTTPResponse holds outbound HTTP responses: 100 entries,
	// 5-minute TTL, 5 MB limit. The Client round-trips through this cache.
	CacheHTTPResponse = "http-response"

	// CacheAIResult holds AI analysis results: 50 entries, 10-minute TTL,
	// unbounded size.
	CacheAIResult = "ai-result"
)

// DefaultCacheConfig is applied when GetOrCreate is called without a config:
// 100 entries, 5-minute TTL, no size limit.
func DefaultCacheConfig() CacheConfig[string, any] {
	return CacheConfig[string, any]{
		MaxEntries: DefaultMaxEntries,
		TTL:        5 * time.Minute,
	}
}

// Registry lazily creates and holds named Cache instances. It is an explicit
// object: construct one at startup and pass it to consumers instead of
// relying on package-level state. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Cache[string, any]
	clock  Clock
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock substitutes the clock used by caches the registry
// creates (unless their config carries its own).
func WithRegistryClock(clock Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

// NewRegistry creates a registry with the three fixed policy caches
// pre-registered: CachePageText, CacheHTTPResponse and CacheAIResult.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		caches: make(map[string]*Cache[string, any]),
		clock:  SystemClock(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.GetOrCreate(CachePageText, CacheConfig[string, any]{
		MaxEntries: 50,
		SizeLimit:  10 * 1024 * 1024,
	})
	r.GetOrCreate(CacheHTTPResponse, CacheConfig[string, any]{
		MaxEntries: 100,
		TTL:        5 * time.Minute,
		SizeLimit:  5 * 1024 * 1024,
	})
	r.GetOrCreate(CacheAIResult, CacheConfig[string, any]{
		MaxEntries: 50,
		TTL:        10 * time.Minute,
	})

	return r
}

// GetOrCreate returns the named cache, creating it on first use with the
// given config (or DefaultCacheConfig when none is given). Config applies at
// creation time only: re-requesting an existing name with a different config
// returns the existing instance unchanged.
func (r *Registry) GetOrCreate(name string, config ...CacheConfig[string, any]) *Cache[string, any] {
	r.mu.RLock()
	c, ok := r.caches[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[name]; ok {
		return c
	}

	cfg := DefaultCacheConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Clock == nil {
		cfg.Clock = r.clock
	}
	c = NewCache[string, any](name, cfg)
	r.caches[name] = c
	return c
}

// Clear empties the named cache without deregistering it. It reports whether
// the cache existed.
func (r *Registry) Clear(name string) bool {
	r.mu.RLock()
	c, ok := r.caches[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	c.Clear()
	return true
}

// ClearAll empties every registered cache; all stay registered.
func (r *Registry) ClearAll() {
	for _, c := range r.snapshot() {
		c.Clear()
	}
}

// Stats returns a snapshot for the named cache.
func (r *Registry) Stats(name string) (CacheStats, bool) {
	r.mu.RLock()
	c, ok := r.caches[name]
	r.mu.RUnlock()
	if !ok {
		return CacheStats{}, false
	}
	return c.Stats(), true
}

// AllStats returns snapshots for every registered cache, keyed by name.
func (r *Registry) AllStats() map[string]CacheStats {
	all := make(map[string]CacheStats)
	for name, c := range r.snapshot() {
		all[name] = c.Stats()
	}
	return all
}

// Names lists the registered cache names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Delete deregisters the named cache. A later GetOrCreate under the same
// name starts fresh. It reports whether the cache existed.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caches[name]; !ok {
		return false
	}
	delete(r.caches, name)
	return true
}

func (r *Registry) snapshot() map[string]*Cache[string, any] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Cache[string, any], len(r.caches))
	for name, c := range r.caches {
		out[name] = c
	}
	return out
}
