package cache

import (
	"context"
	"log"
	"time"
)

// KeyPrefix namespaces every existence entry in the shared Redis keyspace.
const KeyPrefix = "url_exists:"

// DefaultTTL bounds how long a cached existence answer may go stale.
const DefaultTTL = 3600 * time.Second

// AliasStore is the slice of the link store the existence cache needs: a
// single authoritative "does this alias exist" lookup.
type AliasStore interface {
	AliasExists(ctx context.Context, alias string) (bool, error)
}

// Existence answers "does alias X exist" with a look-aside cache in front of
// the link store. The store stays the source of truth: cache entries expire
// after the TTL and every cache failure degrades to a direct store query.
// The public redirect path never consults this cache; it exists to spare the
// store round-trips on write-path duplicate checks.
type Existence struct {
	backend Backend // nil when caching is disabled
	store   AliasStore
	ttl     time.Duration
}

// NewExistence builds the cache layer. backend may be nil, in which case
// every query goes straight to the store. A zero ttl selects DefaultTTL.
func NewExistence(backend Backend, store AliasStore, ttl time.Duration) *Existence {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Existence{backend: backend, store: store, ttl: ttl}
}

func cacheKey(alias string) string {
	return KeyPrefix + alias
}

func boolValue(exists bool) string {
	if exists {
		return "true"
	}
	return "false"
}

// Exists reports whether the alias is taken. Cache hits are returned
// directly; misses query the store and write the answer back with the TTL.
// A failing cache backend is an optimization loss, not an error: the call
// falls through to the store and the caller never sees the cache fault.
func (e *Existence) Exists(ctx context.Context, alias string) (bool, error) {
	if e.backend == nil {
		return e.store.AliasExists(ctx, alias)
	}

	key := cacheKey(alias)

	cached, ok, err := e.backend.Get(ctx, key)
	if err != nil {
		log.Printf("cache: error reading %s, falling back to store: %v", key, err)
		return e.store.AliasExists(ctx, alias)
	}
	if ok {
		return cached == "true", nil
	}

	exists, err := e.store.AliasExists(ctx, alias)
	if err != nil {
		return false, err
	}

	if err := e.backend.SetWithExpiry(ctx, key, boolValue(exists), e.ttl); err != nil {
		log.Printf("cache: error writing %s: %v", key, err)
	}

	return exists, nil
}

// BatchResult partitions a batch lookup into answers the cache knew and
// aliases the caller still has to ask the store about.
type BatchResult struct {
	Existing    map[string]struct{} // aliases the cache knows exist
	CacheHits   int
	CacheMisses int
	Uncached    []string // aliases with no cached answer, in input order
}

// ExistsBatch resolves many aliases with a single multi-get. Misses are NOT
// backfilled here; the caller decides whether and how to populate them (see
// CacheKnown). A backend error demotes every input to a miss so the caller
// degrades to asking the store for everything.
func (e *Existence) ExistsBatch(ctx context.Context, aliases []string) BatchResult {
	result := BatchResult{Existing: make(map[string]struct{})}

	if e.backend == nil {
		result.CacheMisses = len(aliases)
		result.Uncached = append(result.Uncached, aliases...)
		return result
	}

	keys := make([]string, len(aliases))
	for i, a := range aliases {
		keys[i] = cacheKey(a)
	}

	cached, err := e.backend.MultiGet(ctx, keys)
	if err != nil {
		log.Printf("cache: batch read error, treating %d aliases as misses: %v", len(aliases), err)
		result.CacheMisses = len(aliases)
		result.Uncached = append(result.Uncached, aliases...)
		return result
	}

	for i, a := range aliases {
		if cached[i] == nil {
			result.CacheMisses++
			result.Uncached = append(result.Uncached, a)
			continue
		}
		result.CacheHits++
		if *cached[i] == "true" {
			result.Existing[a] = struct{}{}
		}
	}

	return result
}

// Known is one alias whose existence the caller has just learned from the
// authoritative store.
type Known struct {
	Alias  string
	Exists bool
}

// CacheKnown writes known answers back to the cache, best effort. Failures
// are logged and swallowed: a cache write is never allowed to fail a
// user-facing request.
func (e *Existence) CacheKnown(ctx context.Context, results []Known) {
	if e.backend == nil {
		return
	}
	for _, r := range results {
		if err := e.backend.SetWithExpiry(ctx, cacheKey(r.Alias), boolValue(r.Exists), e.ttl); err != nil {
			log.Printf("cache: error caching result for %s: %v", r.Alias, err)
		}
	}
}

// Stats describes the cache keyspace for the admin diagnostics endpoint.
type Stats struct {
	TotalKeys   int    `json:"totalKeys"`
	MemoryUsage string `json:"memoryUsage"`
}

// CacheStats enumerates the existence keyspace. Diagnostic only.
func (e *Existence) CacheStats(ctx context.Context) (Stats, error) {
	if e.backend == nil {
		return Stats{TotalKeys: 0, MemoryUsage: "cache disabled"}, nil
	}
	keys, err := e.backend.KeysWithPrefix(ctx, KeyPrefix)
	if err != nil {
		return Stats{MemoryUsage: "unknown"}, err
	}
	return Stats{TotalKeys: len(keys), MemoryUsage: "not tracked per key"}, nil
}
