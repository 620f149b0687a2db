package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/approval-sentinel/internal/types"
)

func setupTrustCache(t *testing.T) (*TrustCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close() // nolint:errcheck // cleanup
	})

	return NewTrustCache(NewRedisCacheFromClient(client), time.Minute), mr
}

func TestTrustCacheMissBeforePut(t *testing.T) {
	cache, _ := setupTrustCache(t)
	ctx := testContext(t)

	_, hit, err := cache.GetTrusted(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTrustCachePutAndGet(t *testing.T) {
	cache, _ := setupTrustCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Put(ctx, "user-1", types.ChainEthereum, []string{"0xaaa", "0xbbb"}))

	trusted, hit, err := cache.GetTrusted(ctx, "user-1", types.ChainEthereum, []string{"0xaaa", "0xccc"})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, trusted["0xaaa"])
	assert.False(t, trusted["0xccc"])
}

func TestTrustCacheEmptyAllowlistIsStillAHit(t *testing.T) {
	cache, _ := setupTrustCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Put(ctx, "user-1", types.ChainEthereum, nil))

	trusted, hit, err := cache.GetTrusted(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.False(t, trusted["0xaaa"])
}

func TestTrustCacheKeysAreScopedPerUserAndChain(t *testing.T) {
	cache, _ := setupTrustCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Put(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"}))

	_, hit, err := cache.GetTrusted(ctx, "user-1", types.ChainPolygon, []string{"0xaaa"})
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = cache.GetTrusted(ctx, "user-2", types.ChainEthereum, []string{"0xaaa"})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTrustCacheInvalidate(t *testing.T) {
	cache, _ := setupTrustCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Put(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"}))
	require.NoError(t, cache.Invalidate(ctx, "user-1", types.ChainEthereum))

	_, hit, err := cache.GetTrusted(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTrustCachePutReplacesPreviousSet(t *testing.T) {
	cache, _ := setupTrustCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Put(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"}))
	require.NoError(t, cache.Put(ctx, "user-1", types.ChainEthereum, []string{"0xbbb"}))

	trusted, hit, err := cache.GetTrusted(ctx, "user-1", types.ChainEthereum, []string{"0xaaa", "0xbbb"})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.False(t, trusted["0xaaa"])
	assert.True(t, trusted["0xbbb"])
}

func TestTrustCacheEntriesExpire(t *testing.T) {
	cache, mr := setupTrustCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Put(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"}))

	mr.FastForward(2 * time.Minute)

	_, hit, err := cache.GetTrusted(ctx, "user-1", types.ChainEthereum, []string{"0xaaa"})
	require.NoError(t, err)
	assert.False(t, hit)
}
