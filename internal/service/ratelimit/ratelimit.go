// Package ratelimit guards write operations with a per-user fixed window.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/cache"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
)

type Guard struct {
	limiter cache.Limiter
	log     *slog.Logger
	scope   string
	limit   int
	window  time.Duration
}

// New builds a guard for one operation scope. A nil limiter or a
// non-positive limit lets everything through.
func New(limiter cache.Limiter, log *slog.Logger, scope string, limit int, window time.Duration) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{limiter: limiter, log: log, scope: scope, limit: limit, window: window}
}

// FromApp uses the app's Redis cache as limiter when one is configured.
func FromApp(appCtx *app.AppContext, scope string, limit int, window time.Duration) *Guard {
	var l cache.Limiter
	if appCtx.RedisCache != nil {
		l = appCtx.RedisCache
	}
	return New(l, appCtx.Logger, scope, limit, window)
}

// Check counts one call of userID and rejects it once the window is full.
// Limiter failures are logged and the call is let through.
func (g *Guard) Check(ctx context.Context, op string, userID uint64) error {
	if g == nil || g.limiter == nil || g.limit <= 0 {
		return nil
	}

	ok, n, err := g.limiter.Allow(ctx, cache.KeyForRateLimit(g.scope, userID), g.limit, g.window)
	if err != nil {
		g.log.Warn("rate limiter unavailable, allowing", "op", op, "user_id", userID, "err", err)
		return nil
	}
	if !ok {
		g.log.Debug("rate limited", "op", op, "user_id", userID, "count", n, "limit", g.limit)
		return svcErr.RateLimited(op, strconv.FormatUint(userID, 10))
	}
	return nil
}
