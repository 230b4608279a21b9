package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/cache"
	"github.com/oggyb/swipelingo/internal/config"
	"github.com/oggyb/swipelingo/internal/db"
	"github.com/oggyb/swipelingo/internal/logger"
	"github.com/oggyb/swipelingo/internal/server"
	"github.com/oggyb/swipelingo/internal/service/conversation"
	"github.com/oggyb/swipelingo/internal/service/matching"
	"github.com/oggyb/swipelingo/internal/service/profile"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	defer redisCache.Client.Close()

	// Inject logger into app context
	appCtx := app.New(database, redisCache, log, cfg)

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database, db.SeedOptions{Logger: log}); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	health := server.NewHealthRegistrar(log, 5*time.Second, server.AppChecks(appCtx))
	router := server.NewRouter(log, health.Ready,
		matching.NewRegistrar(appCtx),
		conversation.NewRegistrar(appCtx),
		profile.NewRegistrar(appCtx),
	)
	httpServer := server.NewHTTPServer(cfg, router)
	grpcServer := server.NewGRPCServer(health)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		health.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("starting HTTP server", "addr", httpServer.Addr)
		return server.ServeHTTP(gctx, httpServer, shutdownGrace)
	})
	g.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		return server.ServeGRPC(gctx, cfg, grpcServer)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
