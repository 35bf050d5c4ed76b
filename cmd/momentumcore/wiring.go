package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/momentumcore/internal/cache"
)

// newRedisCache connects lazily: go-redis dials on first command, so
// constructing the client here never blocks startup on Redis being up.
func newRedisCache(addr string) cache.BaselineVolumeCache {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return cache.NewRedisBaselineCache(client, "")
}
