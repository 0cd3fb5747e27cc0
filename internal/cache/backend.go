// Package cache implements the look-aside existence cache that sits in front
// of the link store, and the Redis backend it runs on.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is the narrow key-value interface the existence cache consumes.
// Keeping it this small makes the cache trivial to fake in tests and keeps
// the Redis client out of every other package.
type Backend interface {
	// Get returns the value for key. ok is false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetWithExpiry stores value under key with the given TTL.
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error

	// MultiGet returns one entry per key; a nil entry is a miss.
	MultiGet(ctx context.Context, keys []string) ([]*string, error)

	// KeysWithPrefix enumerates keys under prefix. Diagnostic only, never on
	// a hot path.
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// RedisBackend implements Backend on a go-redis client.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing Redis client. The caller owns the client
// lifecycle (it is shared with the rate limiter).
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisBackend) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisBackend) MultiGet(ctx context.Context, keys []string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*string, len(keys))
	for i, v := range raw {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			results[i] = &s
		}
	}
	return results, nil
}

func (r *RedisBackend) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
