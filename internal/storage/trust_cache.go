package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/approval-sentinel/internal/types"
)

// emptyAllowlistMarker keeps a cached-but-empty allowlist distinguishable
// from a cache miss, since Redis drops empty sets.
const emptyAllowlistMarker = "__empty__"

// TrustCache caches a user's full per-chain allowlist as a Redis set so
// repeated trust lookups during a scan tick avoid the database.
type TrustCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewTrustCache creates a trust cache with the given entry TTL
func NewTrustCache(redis *RedisCache, ttl time.Duration) *TrustCache {
	return &TrustCache{redis: redis, ttl: ttl}
}

func (c *TrustCache) key(userID string, chain types.Chain) string {
	return fmt.Sprintf("allowlist:%s:%s", userID, chain)
}

// GetTrusted checks the given spenders against a cached allowlist.
// The second return is false on a cache miss.
func (c *TrustCache) GetTrusted(ctx context.Context, userID string, chain types.Chain, spenders []string) (map[string]bool, bool, error) {
	key := c.key(userID, chain)

	exists, err := c.redis.Client().Exists(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("trust cache exists check failed: %w", err)
	}
	if exists == 0 {
		return nil, false, nil
	}

	trusted := make(map[string]bool, len(spenders))
	if len(spenders) == 0 {
		return trusted, true, nil
	}

	members, err := c.redis.Client().SMIsMember(ctx, key, toAnySlice(spenders)...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("trust cache membership check failed: %w", err)
	}
	for i, ok := range members {
		if ok {
			trusted[spenders[i]] = true
		}
	}
	return trusted, true, nil
}

// Put stores a user's full allowlist for a chain
func (c *TrustCache) Put(ctx context.Context, userID string, chain types.Chain, allSpenders []string) error {
	key := c.key(userID, chain)

	members := toAnySlice(allSpenders)
	if len(members) == 0 {
		members = []any{emptyAllowlistMarker}
	}

	pipe := c.redis.Client().TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("trust cache put failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached allowlist for a user and chain.
// Called on every allowlist mutation.
func (c *TrustCache) Invalidate(ctx context.Context, userID string, chain types.Chain) error {
	if err := c.redis.Client().Del(ctx, c.key(userID, chain)).Err(); err != nil {
		return fmt.Errorf("trust cache invalidate failed: %w", err)
	}
	return nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
