// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/cache"
	"github.com/oggyb/swipelingo/internal/config"
	"github.com/oggyb/swipelingo/internal/db"
	applog "github.com/oggyb/swipelingo/internal/logger"
)

// NewTestDB opens an isolated in-memory SQLite database with the full schema.
//
// The pool is pinned to one connection: SQLite serializes writers anyway and
// a single connection keeps the shared in-memory database alive while turning
// concurrent test goroutines into queued, store-serialized operations.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db.All()...))
	return database
}

// NewTestRedis starts a miniredis and returns a cache bound to it.
func NewTestRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.Defaults()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Client.Close() })
	return rc, mr
}

// NewAppContext wires a test database, no Redis, a silent logger and default
// config. Callers may set RedisCache, Now or Config fields afterwards.
func NewAppContext(t *testing.T) *app.AppContext {
	t.Helper()
	return app.New(NewTestDB(t), nil, applog.Discard(), config.Defaults())
}

var telegramSeq atomic.Int64

// CreateUser inserts a learner with the given name and languages.
func CreateUser(t *testing.T, database *gorm.DB, name string, native, learning []string) db.User {
	t.Helper()

	u := db.User{
		TelegramID:        1_000_000 + telegramSeq.Add(1),
		Name:              name,
		NativeLanguages:   native,
		LearningLanguages: learning,
		Role:              db.RoleLearner,
	}
	require.NoError(t, database.Create(&u).Error)
	return u
}

// CreateUsers inserts n learners named user1..userN.
func CreateUsers(t *testing.T, database *gorm.DB, n int) []db.User {
	t.Helper()

	users := make([]db.User, 0, n)
	for i := 1; i <= n; i++ {
		users = append(users, CreateUser(t, database, fmt.Sprintf("user%d", i), []string{"English"}, []string{"Spanish"}))
	}
	return users
}

// Clock is a manually advanced time source.
type Clock struct {
	T time.Time
}

func NewClock() *Clock {
	return &Clock{T: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) time.Time {
	c.T = c.T.Add(d)
	return c.T
}
