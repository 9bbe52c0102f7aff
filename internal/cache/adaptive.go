package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Loader fetches the value for a cache miss.
type Loader func(ctx context.Context) (any, error)

// keyTelemetry is the per-key bookkeeping the adaptive cache layers
// on top of the base Cache, per spec.md §4.3: a bounded access log
// plus hit/total counters. Composition, not inheritance — AdaptiveCache
// holds a *Cache and its own telemetry maps rather than overriding
// Cache's methods.
type keyTelemetry struct {
	accesses []time.Time
	hits     int
	total    int
}

// AdaptiveCache extends Cache with access-pattern-driven TTL and
// concurrent preload, per spec.md §4.3.
type AdaptiveCache struct {
	base *Cache

	mu    sync.Mutex
	stats map[string]*keyTelemetry

	now func() time.Time
	log *zap.SugaredLogger
}

// NewAdaptive constructs an AdaptiveCache wrapping a fresh Cache.
func NewAdaptive(log *zap.SugaredLogger) *AdaptiveCache {
	return &AdaptiveCache{
		base:  New(),
		stats: make(map[string]*keyTelemetry),
		now:   time.Now,
		log:   log,
	}
}

func (a *AdaptiveCache) telemetry(key string) *keyTelemetry {
	t, ok := a.stats[key]
	if !ok {
		t = &keyTelemetry{}
		a.stats[key] = t
	}
	return t
}

func (a *AdaptiveCache) recordAccess(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.telemetry(key)
	t.accesses = append(t.accesses, a.now())
	if len(t.accesses) > 200 {
		t.accesses = t.accesses[len(t.accesses)-100:]
	}
}

func (a *AdaptiveCache) recordOutcome(key string, hit bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.telemetry(key)
	t.total++
	if hit {
		t.hits++
	}
}

// GetOrLoad records the access, returns the cached value on a hit,
// else calls loader exactly once, stores the result with an adaptive
// TTL, and returns it. Per spec.md §8's idempotence property, two
// back-to-back calls invoke loader once.
func (a *AdaptiveCache) GetOrLoad(ctx context.Context, key string, loader Loader, baseMinutes float64) (any, error) {
	a.recordAccess(key)

	if v, ok := a.base.Get(key); ok {
		a.recordOutcome(key, true)
		return v, nil
	}
	a.recordOutcome(key, false)

	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	ttl := a.OptimalTTL(key, baseMinutes)
	a.base.Set(key, v, ttl)
	return v, nil
}

// OptimalTTL implements spec.md §4.3's multiplier table. f is the
// number of accesses to key within the last hour.
func (a *AdaptiveCache) OptimalTTL(key string, baseMinutes float64) float64 {
	a.mu.Lock()
	t, ok := a.stats[key]
	if !ok {
		a.mu.Unlock()
		return baseMinutes
	}
	accessCount := len(t.accesses)
	if accessCount < 5 {
		a.mu.Unlock()
		return baseMinutes
	}

	cutoff := a.now().Add(-time.Hour)
	f := 0
	for _, at := range t.accesses {
		if at.After(cutoff) {
			f++
		}
	}
	hits, total := t.hits, t.total
	a.mu.Unlock()

	multiplier := 1.0
	switch {
	case f > 50:
		multiplier = 3.0
	case f > 20:
		multiplier = 2.0
	case f < 5:
		multiplier = 0.5
	}

	if total > 10 {
		hitRate := float64(hits) / float64(total)
		if hitRate > 0.9 {
			multiplier *= 1.2
		} else if hitRate < 0.3 {
			multiplier *= 0.8
		}
	}

	ttl := float64(int(baseMinutes * multiplier))
	return clamp(ttl, 1, 120)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PreloadSpec is one entry of a preload batch: the key to warm, its
// loader, and the base TTL to seed it with.
type PreloadSpec struct {
	Key         string
	Loader      Loader
	BaseMinutes float64
}

// Preload runs GetOrLoad for every spec concurrently, using a bounded
// worker pool (github.com/sourcegraph/conc) rather than hand-rolled
// goroutines + sync.WaitGroup. A failing loader is isolated and
// logged; it never aborts the rest of the batch.
func (a *AdaptiveCache) Preload(ctx context.Context, specs []PreloadSpec) {
	p := pool.New().WithMaxGoroutines(8)
	for _, spec := range specs {
		spec := spec
		p.Go(func() {
			if _, err := a.GetOrLoad(ctx, spec.Key, spec.Loader, spec.BaseMinutes); err != nil {
				if a.log != nil {
					a.log.Warnw("preload failed", "key", spec.Key, "error", err)
				}
			}
		})
	}
	p.Wait()
}

// Invalidate proxies to the base cache.
func (a *AdaptiveCache) Invalidate(substring string) int { return a.base.Invalidate(substring) }

// Clear empties both the base store and per-key telemetry — used by
// admission's emergency cleanup.
func (a *AdaptiveCache) Clear() {
	a.base.Clear()
	a.mu.Lock()
	a.stats = make(map[string]*keyTelemetry)
	a.mu.Unlock()
}

// Stats reports aggregate hit rate and access volume across all keys,
// for the operator-facing cache snapshot.
func (a *AdaptiveCache) Stats() (hitRate float64, accesses int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var hits, total int
	for _, t := range a.stats {
		hits += t.hits
		total += t.total
		accesses += len(t.accesses)
	}
	if total == 0 {
		return 0, accesses
	}
	return float64(hits) / float64(total), accesses
}

// Len reports the number of live entries in the base store.
func (a *AdaptiveCache) Len() int { return a.base.Len() }
