package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go-inventory-insights/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Meta describes where a value came from.
type Meta struct {
	CachedAt time.Time `json:"cachedAt"`
	Stale    bool      `json:"stale"`
	Hit      bool      `json:"-"`
}

// flightTimeout bounds a shared computation, which outlives any single caller.
const flightTimeout = 10 * time.Second

// Loader implements get-or-compute on top of a Store. Concurrent misses for
// one key share a single computation. Expired entries are never served while
// a recompute can succeed.
type Loader struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time

	// gens counts invalidations per key. A computation started under an older
	// generation read superseded data and must not be stored.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewLoader(store Store, ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{store: store, ttl: ttl, now: time.Now, gens: make(map[string]uint64)}
}

// WithClock replaces the time source, used by tests.
func (l *Loader) WithClock(now func() time.Time) *Loader {
	l.now = now
	return l
}

func (l *Loader) generation(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gens[key]
}

// Invalidate expires keys so the next reader recomputes them. The old values
// are kept as stale fallbacks, and computations already in flight for these
// keys are neither stored nor shared with later callers.
func (l *Loader) Invalidate(ctx context.Context, keys ...string) {
	l.mu.Lock()
	for _, k := range keys {
		l.gens[k]++
		l.group.Forget(k)
	}
	l.mu.Unlock()

	if err := l.store.Expire(ctx, l.now(), keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidate failed")
	}
}

// GetOrCompute returns the cached value under key, computing and storing it on
// a miss or after expiry. When compute fails and an expired value is still
// held, that value is returned with Meta.Stale set instead of the error.
func GetOrCompute[T any](ctx context.Context, l *Loader, view, key string, compute func(ctx context.Context) (T, error)) (T, Meta, error) {
	var zero T

	cached, err := l.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, recomputing")
		cached = nil
	}
	if cached != nil && cached.Fresh(l.now()) {
		var v T
		if err := json.Unmarshal(cached.Value, &v); err == nil {
			metrics.CacheLookups.WithLabelValues(view, "hit").Inc()
			return v, Meta{CachedAt: cached.StoredAt, Hit: true}, nil
		}
		cached = nil
	}
	metrics.CacheLookups.WithLabelValues(view, "miss").Inc()

	res, err, _ := l.group.Do(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()

		gen := l.generation(key)
		// Another flight may have refreshed the key while we waited.
		if e, err := l.store.Get(fctx, key); err == nil && e != nil && e.Fresh(l.now()) {
			return *e, nil
		}
		v, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		now := l.now()
		e := Entry{Value: raw, StoredAt: now, ExpiresAt: now.Add(l.ttl)}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.gens[key] != gen {
			log.Debug().Str("key", key).Msg("view invalidated during compute, not cached")
			return e, nil
		}
		if err := l.store.Set(fctx, key, e); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return e, nil
	})
	if err != nil {
		if cached != nil {
			var v T
			if uerr := json.Unmarshal(cached.Value, &v); uerr == nil {
				metrics.CacheLookups.WithLabelValues(view, "stale").Inc()
				log.Warn().Err(err).Str("key", key).Time("cached_at", cached.StoredAt).Msg("serving stale insight view")
				return v, Meta{CachedAt: cached.StoredAt, Stale: true}, nil
			}
		}
		return zero, Meta{}, err
	}

	e := res.(Entry)
	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return zero, Meta{}, err
	}
	return v, Meta{CachedAt: e.StoredAt}, nil
}
