package server

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oggyb/swipelingo/internal/app"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// HealthRegistrar exposes grpc.health.v1 and keeps its status in line with
// the periodic dependency checks. The overall service ("") is SERVING only
// when every check passes; each check is also reported under its own name.
type HealthRegistrar struct {
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu    sync.RWMutex
	ready bool
}

func NewHealthRegistrar(log *slog.Logger, interval time.Duration, checks map[string]Check) *HealthRegistrar {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h := &HealthRegistrar{
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		timeout:  2 * time.Second,
		log:      log,
	}
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		h.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// AppChecks pings the database and, when configured, Redis.
func AppChecks(appCtx *app.AppContext) map[string]Check {
	checks := map[string]Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := appCtx.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if appCtx.RedisCache != nil {
		checks["redis"] = appCtx.RedisCache.Ping
	}
	return checks
}

func (h *HealthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Probe runs every check once and publishes the result.
func (h *HealthRegistrar) Probe(ctx context.Context) bool {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ok := true
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.checks[name](cctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			ok = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Warn("health check failed", "check", name, "err", err)
		}
		h.health.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", overall)

	h.mu.Lock()
	h.ready = ok
	h.mu.Unlock()
	return ok
}

// Ready returns the result of the last probe.
func (h *HealthRegistrar) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Run probes immediately and then every interval until ctx is done, when
// all statuses flip to NOT_SERVING.
func (h *HealthRegistrar) Run(ctx context.Context) {
	h.Probe(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
