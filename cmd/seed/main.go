package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/oggyb/swipelingo/internal/config"
	"github.com/oggyb/swipelingo/internal/db"
	"github.com/oggyb/swipelingo/internal/logger"
)

func main() {
	flags := pflag.NewFlagSet("seed", pflag.ExitOnError)
	users := flags.Int("users", 20, "number of demo users to create")
	swipes := flags.Int("swipes", 12, "swipes per user")
	reset := flags.Bool("reset", false, "delete existing users, swipes, matches and messages first")
	seed := flags.Int64("seed", 0, "random seed (0 = time based)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: seed [flags]\n\nLoads demo data into the configured database.\n\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	err = db.SeedTestData(database, db.SeedOptions{
		Users:         *users,
		SwipesPerUser: *swipes,
		Reset:         *reset,
		Seed:          *seed,
		Logger:        log,
	})
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed", "users", *users, "driver", cfg.DB.Driver)
}
