package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/oggyb/swipelingo/internal/config"
	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error)
}

var _ Limiter = (*RedisCache)(nil)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForRateLimit generates the fixed-window counter key for one caller of
// one operation, e.g. ratelimit:swipe:42.
func KeyForRateLimit(scope string, userID uint64) string {
	return fmt.Sprintf("ratelimit:%s:%d", scope, userID)
}

// Allow counts one hit against key in a fixed window and reports whether the
// hit is within limit. The window starts with the first hit; the TTL is set
// only then, so later hits never extend it.
//
// A limit <= 0 disables limiting.
func (c *RedisCache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error) {
	if limit <= 0 {
		return true, 0, nil
	}

	n, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := c.Client.Expire(ctx, key, window).Err(); err != nil {
			return false, n, err
		}
	}
	return n <= int64(limit), n, nil
}
