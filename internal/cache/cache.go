// Package cache implements an optional pre-market baseline-volume
// cache: PreMarketScanner's 10-trading-day volume baseline is
// expensive and slowly-changing, worth memoizing across repeated
// scans of the same universe within a trading day.
//
// RedisBaselineCache is a typed BaselineVolumeCache over
// redis/go-redis/v9, storing one float64 per symbol.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// BaselineVolumeCache memoizes a symbol's trailing pre-market volume
// baseline. A cache miss or error is never fatal to a scan — callers
// fall back to computing the baseline from the historical adapter.
type BaselineVolumeCache interface {
	Get(ctx context.Context, symbol string) (baseline float64, ok bool, err error)
	Set(ctx context.Context, symbol string, baseline float64, ttl time.Duration) error
}

// RedisBaselineCache is a BaselineVolumeCache backed by a redis
// client, keying entries under a fixed namespace prefix so the cache
// can share a redis instance with unrelated data.
type RedisBaselineCache struct {
	client *redis.Client
	prefix string
}

// NewRedisBaselineCache constructs a RedisBaselineCache. prefix, if
// empty, defaults to "premarket:baseline:".
func NewRedisBaselineCache(client *redis.Client, prefix string) *RedisBaselineCache {
	if prefix == "" {
		prefix = "premarket:baseline:"
	}
	return &RedisBaselineCache{client: client, prefix: prefix}
}

func (c *RedisBaselineCache) key(symbol string) string {
	return c.prefix + symbol
}

// Get returns (0, false, nil) on a cache miss, never an error for
// that case — only connectivity/parse failures are surfaced as err.
func (c *RedisBaselineCache) Get(ctx context.Context, symbol string) (float64, bool, error) {
	raw, err := c.client.Get(ctx, c.key(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	baseline, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return baseline, true, nil
}

func (c *RedisBaselineCache) Set(ctx context.Context, symbol string, baseline float64, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(symbol), strconv.FormatFloat(baseline, 'f', -1, 64), ttl).Err()
}
