package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLoginLimiterExhaustsBurst(t *testing.T) {
	client, _ := newClient(t)
	limiter, err := NewLoginLimiter(client, 0.001, 2)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "Analyst@Example.com")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
	}

	res, err := limiter.Allow(ctx, " analyst@example.com ")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	other, err := limiter.Allow(ctx, "viewer@example.com")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLoginLimiterDoesNotStoreEmail(t *testing.T) {
	client, mr := newClient(t)
	limiter, err := NewLoginLimiter(client, 1, 5)
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), "admin@example.com")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "admin")
	assert.Contains(t, keys[0], keyLoginEmail)
	assert.Positive(t, mr.TTL(keys[0]))
}

func TestNilLoginLimiterAllows(t *testing.T) {
	var limiter *LoginLimiter
	res, err := limiter.Allow(context.Background(), "x@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketValidatesInput(t *testing.T) {
	client, _ := newClient(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	_, err := bucket.Allow(ctx, "", 1, 1)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = bucket.Allow(ctx, "k", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidBucket)

	var empty *TokenBucket
	_, err = empty.Allow(ctx, "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewLoginLimiter(nil, 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
