package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/redis/go-redis/v9"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/tracing"
)

const keyPrefix = "mailtrack:metrics"

var _ interfaces.MetricsCache = (*RedisMetricsCache)(nil)

// RedisMetricsCache is a read-through cache for aggregator results. Entries
// are namespaced by a per-user version counter; bumping the counter makes
// every older entry unreachable and lets it expire on its TTL.
type RedisMetricsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMetricsCache(client *redis.Client, ttl time.Duration) *RedisMetricsCache {
	return &RedisMetricsCache{client: client, ttl: ttl}
}

func versionKey(userID string) string {
	return fmt.Sprintf("%s:%s:version", keyPrefix, userID)
}

func entryKey(userID string, version int64, key string) string {
	return fmt.Sprintf("%s:%s:v%d:%s", keyPrefix, userID, version, key)
}

func (c *RedisMetricsCache) version(ctx context.Context, userID string) (int64, error) {
	version, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return version, nil
}

// Get looks key up under the user's current version and returns that
// version for a later Set. A miss still reports the version.
func (c *RedisMetricsCache) Get(ctx context.Context, userID, key string, dest interface{}) (int64, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RedisMetricsCache.Get")
	defer span.Finish()
	tracing.TagComponentCache(span)
	tracing.TagUserId(span, userID)

	version, err := c.version(ctx, userID)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, false, err
	}
	span.LogKV("version", version)

	data, err := c.client.Get(ctx, entryKey(userID, version, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		span.LogKV("result.hit", false)
		return version, false, nil
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return version, false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		tracing.TraceErr(span, err)
		return version, false, err
	}
	span.LogKV("result.hit", true)
	return version, true, nil
}

// Set stores value under version. Writing under a version that has since
// been bumped is harmless: nothing reads it and it expires on its TTL.
func (c *RedisMetricsCache) Set(ctx context.Context, userID string, version int64, key string, value interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RedisMetricsCache.Set")
	defer span.Finish()
	tracing.TagComponentCache(span)
	tracing.TagUserId(span, userID)
	span.LogKV("version", version)

	data, err := json.Marshal(value)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := c.client.Set(ctx, entryKey(userID, version, key), data, c.ttl).Err(); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (c *RedisMetricsCache) Invalidate(ctx context.Context, userID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RedisMetricsCache.Invalidate")
	defer span.Finish()
	tracing.TagComponentCache(span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil
	}
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

type noopMetricsCache struct{}

func NewNoopMetricsCache() interfaces.MetricsCache {
	return noopMetricsCache{}
}

func (noopMetricsCache) Get(context.Context, string, string, interface{}) (int64, bool, error) {
	return 0, false, nil
}

func (noopMetricsCache) Set(context.Context, string, int64, string, interface{}) error {
	return nil
}

func (noopMetricsCache) Invalidate(context.Context, string) error {
	return nil
}
