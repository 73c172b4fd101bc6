package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// queryKey identifies a cached read, e.g. {"oracleGame", "roomLeaderboard", 3}.
type queryKey []any

func (k queryKey) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, "/")
}

func (k queryKey) hasPrefix(prefix queryKey) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if fmt.Sprint(k[i]) != fmt.Sprint(prefix[i]) {
			return false
		}
	}
	return true
}

const keyRoot = "oracleGame"

func roomsKey() queryKey { return queryKey{keyRoot, "rooms"} }

func roomLeaderboardKey(id int) queryKey { return queryKey{keyRoot, "roomLeaderboard", id} }

func globalLeaderboardKey() queryKey { return queryKey{keyRoot, "globalLeaderboard"} }

type cacheEntry struct {
	key       queryKey
	value     any
	fetchedAt time.Time
}

// queryCache holds read results with a per-query stale time. Concurrent reads
// of the same key share one fetch. Invalidation bumps a generation so a fetch
// that started before it never repopulates the cache.
type queryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	gen     uint64
	group   singleflight.Group
	now     func() time.Time
}

func newQueryCache(now func() time.Time) *queryCache {
	if now == nil {
		now = time.Now
	}
	return &queryCache{entries: map[string]cacheEntry{}, now: now}
}

// lookup returns a fresh value for key, if any, and the current generation.
func (c *queryCache) lookup(key queryKey, stale time.Duration) (any, bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || c.now().Sub(e.fetchedAt) >= stale {
		return nil, false, c.gen
	}
	return e.value, true, c.gen
}

// set stores value regardless of generation. Used to seed related keys.
func (c *queryCache) set(key queryKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = cacheEntry{key: key, value: value, fetchedAt: c.now()}
}

// store saves value unless the cache was invalidated since gen.
func (c *queryCache) store(key queryKey, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries[key.String()] = cacheEntry{key: key, value: value, fetchedAt: c.now()}
}

// generation returns the current invalidation generation.
func (c *queryCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// invalidate drops every entry whose key starts with one of the prefixes and
// returns the new generation.
func (c *queryCache) invalidate(prefixes ...queryKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for k, e := range c.entries {
		for _, p := range prefixes {
			if e.key.hasPrefix(p) {
				delete(c.entries, k)
				break
			}
		}
	}
	return c.gen
}

func fetchQuery[T any](ctx context.Context, c *queryCache, key queryKey, stale time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	v, ok, gen := c.lookup(key, stale)
	if ok {
		return v.(T), nil
	}

	flight := fmt.Sprintf("%s#%d", key, gen)
	res, err, _ := c.group.Do(flight, func() (any, error) {
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, val, gen)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}
