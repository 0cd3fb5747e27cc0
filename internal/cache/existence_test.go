package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend that can be forced to fail.
type fakeBackend struct {
	data     map[string]string
	failing  bool
	setCalls int
	getCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string]string)}
}

var errBackendDown = errors.New("backend down")

func (f *fakeBackend) Get(_ context.Context, key string) (string, bool, error) {
	f.getCalls++
	if f.failing {
		return "", false, errBackendDown
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeBackend) SetWithExpiry(_ context.Context, key, value string, _ time.Duration) error {
	f.setCalls++
	if f.failing {
		return errBackendDown
	}
	f.data[key] = value
	return nil
}

func (f *fakeBackend) MultiGet(_ context.Context, keys []string) ([]*string, error) {
	if f.failing {
		return nil, errBackendDown
	}
	out := make([]*string, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			value := v
			out[i] = &value
		}
	}
	return out, nil
}

func (f *fakeBackend) KeysWithPrefix(_ context.Context, prefix string) ([]string, error) {
	if f.failing {
		return nil, errBackendDown
	}
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// fakeStore is an AliasStore over a fixed set of aliases.
type fakeStore struct {
	aliases map[string]struct{}
	queries int
	failing bool
}

func newFakeStore(aliases ...string) *fakeStore {
	s := &fakeStore{aliases: make(map[string]struct{})}
	for _, a := range aliases {
		s.aliases[a] = struct{}{}
	}
	return s
}

func (s *fakeStore) AliasExists(_ context.Context, alias string) (bool, error) {
	s.queries++
	if s.failing {
		return false, errors.New("store down")
	}
	_, ok := s.aliases[alias]
	return ok, nil
}

func TestExistsMissPopulatesCache(t *testing.T) {
	backend := newFakeBackend()
	store := newFakeStore("taken")
	ec := NewExistence(backend, store, 0)

	exists, err := ec.Exists(context.Background(), "taken")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, store.queries)
	assert.Equal(t, "true", backend.data["url_exists:taken"])

	// Second call is served from cache, the store is not asked again.
	exists, err = ec.Exists(context.Background(), "taken")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, store.queries)
}

func TestExistsCachesNegativeAnswers(t *testing.T) {
	backend := newFakeBackend()
	store := newFakeStore()
	ec := NewExistence(backend, store, 0)

	exists, err := ec.Exists(context.Background(), "free")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, "false", backend.data["url_exists:free"])

	_, _ = ec.Exists(context.Background(), "free")
	assert.Equal(t, 1, store.queries, "negative answer must also be served from cache")
}

func TestExistsHitSkipsStore(t *testing.T) {
	backend := newFakeBackend()
	backend.data["url_exists:cached"] = "true"
	store := newFakeStore()
	ec := NewExistence(backend, store, 0)

	exists, err := ec.Exists(context.Background(), "cached")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Zero(t, store.queries)
}

func TestExistsFallsThroughOnBackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.failing = true
	store := newFakeStore("taken")
	ec := NewExistence(backend, store, 0)

	// Cache errors never reach the caller; the store answers.
	exists, err := ec.Exists(context.Background(), "taken")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ec.Exists(context.Background(), "free")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsWithoutBackend(t *testing.T) {
	store := newFakeStore("taken")
	ec := NewExistence(nil, store, 0)

	exists, err := ec.Exists(context.Background(), "taken")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ec.Exists(context.Background(), "free")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsPropagatesStoreError(t *testing.T) {
	backend := newFakeBackend()
	store := newFakeStore()
	store.failing = true
	ec := NewExistence(backend, store, 0)

	_, err := ec.Exists(context.Background(), "anything")
	assert.Error(t, err)
}

func TestExistsBatchPartitionsHitsAndMisses(t *testing.T) {
	backend := newFakeBackend()
	backend.data["url_exists:a"] = "true"
	backend.data["url_exists:b"] = "false"
	store := newFakeStore()
	ec := NewExistence(backend, store, 0)

	result := ec.ExistsBatch(context.Background(), []string{"a", "b", "c", "d"})

	assert.Equal(t, 2, result.CacheHits)
	assert.Equal(t, 2, result.CacheMisses)
	assert.Equal(t, []string{"c", "d"}, result.Uncached)
	assert.Contains(t, result.Existing, "a")
	assert.NotContains(t, result.Existing, "b")
	// Batch lookups never backfill on their own.
	assert.Zero(t, backend.setCalls)
	assert.Zero(t, store.queries)
}

func TestExistsBatchDegradesOnBackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.failing = true
	ec := NewExistence(backend, newFakeStore(), 0)

	result := ec.ExistsBatch(context.Background(), []string{"a", "b"})

	assert.Zero(t, result.CacheHits)
	assert.Equal(t, 2, result.CacheMisses)
	assert.Equal(t, []string{"a", "b"}, result.Uncached)
	assert.Empty(t, result.Existing)
}

func TestCacheKnown(t *testing.T) {
	backend := newFakeBackend()
	ec := NewExistence(backend, newFakeStore(), 0)

	ec.CacheKnown(context.Background(), []Known{
		{Alias: "x", Exists: true},
		{Alias: "y", Exists: false},
	})

	assert.Equal(t, "true", backend.data["url_exists:x"])
	assert.Equal(t, "false", backend.data["url_exists:y"])
}

func TestCacheKnownSwallowsErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.failing = true
	ec := NewExistence(backend, newFakeStore(), 0)

	// Must not panic or surface anything.
	ec.CacheKnown(context.Background(), []Known{{Alias: "x", Exists: true}})
}

func TestCacheStats(t *testing.T) {
	backend := newFakeBackend()
	backend.data["url_exists:a"] = "true"
	backend.data["url_exists:b"] = "false"
	backend.data["ratelimit:other"] = "1"
	ec := NewExistence(backend, newFakeStore(), 0)

	stats, err := ec.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalKeys, "only existence keys are counted")
}

func TestCacheStatsWithoutBackend(t *testing.T) {
	ec := NewExistence(nil, newFakeStore(), 0)
	stats, err := ec.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalKeys)
}
