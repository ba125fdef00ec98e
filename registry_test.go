package cachewire

import (
	"reflect"
	"testing"
	"time"
)

func TestRegistryPreRegisteredPolicies(t *testing.T) {
	r := NewRegistry()

	want := []string{CacheAIResult, CacheHTTPResponse, CachePageText}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected pre-registered caches %v, got %v", want, got)
	}

	tests := []struct {
		name       string
		maxEntries int
		sizeLimit  int64
	}{
		{CachePageText, 50, 10 * 1024 * 1024},
		{CacheHTTPResponse, 100, 5 * 1024 * 1024},
		{CacheAIResult, 50, 0},
	}
	for _, tt := range tests {
		stats, ok := r.Stats(tt.name)
		if !ok {
			t.Fatalf("cache %q not registered", tt.name)
		}
		if stats.MaxEntries != tt.maxEntries {
			t.Errorf("%s: expected maxEntries %d, got %d", tt.name, tt.maxEntries, stats.MaxEntries)
		}
		if stats.SizeLimitBytes != tt.sizeLimit {
			t.Errorf("%s: expected size limit %d, got %d", tt.name, tt.sizeLimit, stats.SizeLimitBytes)
		}
	}
}

func TestRegistryGetOrCreateDefaults(t *testing.T) {
	r := NewRegistry()

	c := r.GetOrCreate("fresh")
	stats := c.Stats()
	if stats.MaxEntries != 100 {
		t.Errorf("default maxEntries should be 100, got %d", stats.MaxEntries)
	}
	if stats.SizeLimitBytes != 0 {
		t.Errorf("default should have no size limit, got %d", stats.SizeLimitBytes)
	}
}

func TestRegistryDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithRegistryClock(clock))

	c := r.GetOrCreate("ttl-check")
	c.Set("k", "v")

	clock.Advance(5*time.Minute - time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry should survive inside the default 5-minute TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire after the default 5-minute TTL")
	}
}

func TestRegistryConfigIsCreationTimeOnly(t *testing.T) {
	r := NewRegistry()

	first := r.GetOrCreate("quirk", CacheConfig[string, any]{MaxEntries: 3})
	second := r.GetOrCreate("quirk", CacheConfig[string, any]{MaxEntries: 999})

	if first != second {
		t.Fatal("GetOrCreate must return the existing instance")
	}
	if got := second.Stats().MaxEntries; got != 3 {
		t.Errorf("config on an existing name must be a no-op: expected maxEntries 3, got %d", got)
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()

	c := r.GetOrCreate("data")
	c.Set("k", "v")

	if !r.Clear("data") {
		t.Error("Clear should report the cache existed")
	}
	if c.Len() != 0 {
		t.Errorf("cache should be empty, got %d entries", c.Len())
	}
	if r.Clear("never-registered") {
		t.Error("Clear should report false for an unknown name")
	}

	// Clearing keeps the cache registered with its config intact.
	again := r.GetOrCreate("data", CacheConfig[string, any]{MaxEntries: 1})
	if again != c {
		t.Error("Clear must not deregister the cache")
	}
}

func TestRegistryClearAll(t *testing.T) {
	r := NewRegistry()

	r.GetOrCreate("one").Set("k", 1)
	r.GetOrCreate("two").Set("k", 2)
	r.ClearAll()

	for name, stats := range r.AllStats() {
		if stats.Entries != 0 {
			t.Errorf("cache %q should be empty after ClearAll, has %d entries", name, stats.Entries)
		}
	}
	if len(r.Names()) != 5 {
		t.Errorf("ClearAll must not deregister caches, got %v", r.Names())
	}
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry()

	old := r.GetOrCreate("temp", CacheConfig[string, any]{MaxEntries: 7})
	if !r.Delete("temp") {
		t.Error("Delete should report the cache existed")
	}
	if r.Delete("temp") {
		t.Error("second Delete should report false")
	}

	// A later GetOrCreate under the deleted name starts fresh.
	fresh := r.GetOrCreate("temp")
	if fresh == old {
		t.Error("recreated cache should be a new instance")
	}
	if got := fresh.Stats().MaxEntries; got != 100 {
		t.Errorf("recreated cache should use the new (default) config, got maxEntries %d", got)
	}
}

func TestRegistryAllStats(t *testing.T) {
	r := NewRegistry()

	c := r.GetOrCreate("metrics")
	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")

	all := r.AllStats()
	if len(all) != 4 {
		t.Fatalf("expected 4 caches in aggregate stats, got %d", len(all))
	}
	stats := all["metrics"]
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected hits=1 misses=1, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}
