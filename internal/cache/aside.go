package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSONCache stores JSON-encoded values. A nil client misses every read and
// drops every write.
type JSONCache struct {
	client *redis.Client
}

// NewJSONCache returns a JSONCache on c.
func NewJSONCache(c *redis.Client) *JSONCache {
	return &JSONCache{client: c}
}

// GetJSON decodes key into dest. It reports false on a miss.
func (c *JSONCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func (c *JSONCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

// InvalidatePattern deletes every key matching pattern.
func (c *JSONCache) InvalidatePattern(ctx context.Context, pattern string) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Generation returns the counter stored under genKey, or 0 when it has never
// been bumped.
func (c *JSONCache) Generation(ctx context.Context, genKey string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// invalidate bumps genKey before deleting the pages under pattern. A reader
// that loaded before the bump may still write its page afterwards, but under
// the old generation, where no later read looks.
func (c *JSONCache) invalidate(ctx context.Context, genKey, pattern string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, genKey).Err(); err != nil {
		return err
	}
	return c.InvalidatePattern(ctx, pattern)
}

// InvalidateHotFeed drops every cached hot feed page.
func (c *JSONCache) InvalidateHotFeed(ctx context.Context) error {
	return c.invalidate(ctx, HotFeedGenKey, hotFeedPattern)
}

// InvalidateLeaderboard drops every cached leaderboard page.
func (c *JSONCache) InvalidateLeaderboard(ctx context.Context) error {
	return c.invalidate(ctx, LeaderboardGenKey, leaderboardPattern)
}

// Aside returns the cached value under key, or calls load and caches its
// result for ttl. Cache failures fall through to load.
func Aside[T any](ctx context.Context, c *JSONCache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := c.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.SetJSON(ctx, key, v, ttl)
	return v, nil
}

// AsideVersioned is Aside with the page key derived from the generation
// stored under genKey. When the generation cannot be read the cache is
// bypassed.
func AsideVersioned[T any](ctx context.Context, c *JSONCache, genKey string, key func(gen int64) string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	gen, err := c.Generation(ctx, genKey)
	if err != nil {
		return load(ctx)
	}
	return Aside(ctx, c, key(gen), ttl, load)
}
