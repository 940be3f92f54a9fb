package client

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CacheInvalidator purges cached query results after state changes. The HTTP
// layer calls it post-mutation; failures are logged, never propagated.
type CacheInvalidator struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewCacheInvalidator creates an invalidator. A nil client disables it.
func NewCacheInvalidator(rdb *redis.Client, log zerolog.Logger) *CacheInvalidator {
	return &CacheInvalidator{rdb: rdb, log: log}
}

// InvalidatePattern deletes every key matching pattern, e.g. "orders:*".
func (c *CacheInvalidator) InvalidatePattern(ctx context.Context, pattern string) {
	if c.rdb == nil {
		return
	}

	var cursor uint64
	var purged int
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.log.Warn().Err(err).Str("pattern", pattern).Msg("cache: scan failed")
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.log.Warn().Err(err).Str("pattern", pattern).Msg("cache: delete failed")
				return
			}
			purged += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if purged > 0 {
		c.log.Debug().Str("pattern", pattern).Int("keys", purged).Msg("cache: invalidated")
	}
}
