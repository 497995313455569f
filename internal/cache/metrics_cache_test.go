package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Sent   int64   `json:"sent"`
	Opened int64   `json:"opened"`
	Rate   float64 `json:"rate"`
}

func newTestCache(t *testing.T) (*RedisMetricsCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisMetricsCache(client, time.Minute), mr
}

func TestRedisMetricsCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got snapshot
	version, hit, err := c.Get(ctx, "u1", "email-metrics:30d:all", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(0), version)

	require.NoError(t, c.Set(ctx, "u1", version, "email-metrics:30d:all", snapshot{Sent: 3, Opened: 1, Rate: 33.3}))

	_, hit, err = c.Get(ctx, "u1", "email-metrics:30d:all", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, snapshot{Sent: 3, Opened: 1, Rate: 33.3}, got)
}

func TestRedisMetricsCache_InvalidateIsPerUser(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "u1", 0, "k", snapshot{Sent: 1}))
	require.NoError(t, c.Set(ctx, "u2", 0, "k", snapshot{Sent: 2}))

	require.NoError(t, c.Invalidate(ctx, "u1"))

	var got snapshot
	version, hit, err := c.Get(ctx, "u1", "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(1), version)

	_, hit, err = c.Get(ctx, "u2", "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(2), got.Sent)
}

func TestRedisMetricsCache_WriteUnderBumpedVersionIsNeverServed(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got snapshot
	version, hit, err := c.Get(ctx, "u1", "k", &got)
	require.NoError(t, err)
	require.False(t, hit)

	// a write lands and invalidates while the reader is still computing
	require.NoError(t, c.Invalidate(ctx, "u1"))
	require.NoError(t, c.Set(ctx, "u1", version, "k", snapshot{Sent: 1}))

	_, hit, err = c.Get(ctx, "u1", "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisMetricsCache_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "u1", 0, "k", snapshot{Sent: 1}))
	mr.FastForward(2 * time.Minute)

	var got snapshot
	_, hit, err := c.Get(ctx, "u1", "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNoopMetricsCache(t *testing.T) {
	c := NewNoopMetricsCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "u1", 0, "k", 1))
	var v int
	_, hit, err := c.Get(ctx, "u1", "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Invalidate(ctx, "u1"))
}
