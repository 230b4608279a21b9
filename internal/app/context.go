package app

import (
	"log/slog"
	"time"

	"github.com/oggyb/swipelingo/internal/cache"
	"github.com/oggyb/swipelingo/internal/config"
	"gorm.io/gorm"
)

// AppContext holds shared dependencies (DB, Redis, Logger, Config).
// It is built once in main and passed explicitly to every service.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Config     *config.Config

	// Now is the server clock used for decision, message and read timestamps.
	Now func() time.Time
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, cfg *config.Config) *AppContext {
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Config:     cfg,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}
