// Package ratelimit provides sliding-window admission control keyed by client
// identity, with a named budget per endpoint family.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tier names one request budget. Each endpoint family gets its own window.
type Tier string

const (
	TierGeneral  Tier = "general"
	TierShorten  Tier = "shorten"
	TierRedirect Tier = "redirect"
	TierSearch   Tier = "search"
	TierAdmin    Tier = "admin"
)

// Window is the rolling interval every budget applies to.
const Window = time.Minute

// Limits maps each tier to its request budget per window.
type Limits map[Tier]int

// DefaultLimits mirrors the production budgets.
func DefaultLimits() Limits {
	return Limits{
		TierGeneral:  100,
		TierShorten:  20,
		TierRedirect: 200,
		TierSearch:   150,
		TierAdmin:    50,
	}
}

// Limiter is the single operation the rest of the system consumes. A false
// answer means "reject with a rate-limit error"; it is never a retry signal.
type Limiter interface {
	Admit(ctx context.Context, clientID string, tier Tier) bool
}

// RedisLimiter counts requests in a Redis sorted set per (tier, client):
// members are request timestamps, scores are unix nanos, and each Admit
// drops everything older than the window before counting. Shared Redis makes
// the window consistent across server instances.
//
// Redis failures fail open: admission control is protection, not a
// correctness dependency, and an unreachable Redis must not take down the
// redirect path with it.
type RedisLimiter struct {
	client *redis.Client
	limits Limits
}

// NewRedisLimiter builds a limiter over an existing client. Missing tiers
// fall back to the general budget.
func NewRedisLimiter(client *redis.Client, limits Limits) *RedisLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &RedisLimiter{client: client, limits: limits}
}

func (l *RedisLimiter) limitFor(tier Tier) int {
	if n, ok := l.limits[tier]; ok {
		return n
	}
	return l.limits[TierGeneral]
}

func (l *RedisLimiter) Admit(ctx context.Context, clientID string, tier Tier) bool {
	limit := l.limitFor(tier)
	if limit <= 0 {
		return true
	}

	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s:%s", tier, clientID)
	cutoff := strconv.FormatInt(now.Add(-Window).UnixNano(), 10)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	pipe.Expire(ctx, key, Window)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("ratelimit: redis error for %s, admitting: %v", key, err)
		return true
	}

	// count was taken before this request's own entry was added.
	return count.Val() < int64(limit)
}

// MemoryLimiter is the in-process fallback used when Redis is not
// configured. Same sliding-window semantics, scoped to one process.
type MemoryLimiter struct {
	limits Limits
	now    func() time.Time

	mu      sync.Mutex
	history map[string][]time.Time
}

// NewMemoryLimiter builds a process-local limiter.
func NewMemoryLimiter(limits Limits) *MemoryLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &MemoryLimiter{
		limits:  limits,
		now:     time.Now,
		history: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Admit(_ context.Context, clientID string, tier Tier) bool {
	limit, ok := l.limits[tier]
	if !ok {
		limit = l.limits[TierGeneral]
	}
	if limit <= 0 {
		return true
	}

	now := l.now()
	cutoff := now.Add(-Window)
	key := string(tier) + ":" + clientID

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.history[key][:0]
	for _, t := range l.history[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.history[key] = kept
		return false
	}

	l.history[key] = append(kept, now)
	return true
}
