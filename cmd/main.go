package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Nezreka/SoulSync-sub002/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loaded, err := shared.LoadConfig("config.toml"); err == nil {
			config = loaded
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	}

	ctx := context.Background()

	var db *sql.DB
	if _, err := os.Stat(config.Database.Path); err == nil {
		if opened, err := shared.NewDatabase(config.Database.Path); err == nil {
			shared.ConfigureDatabase(opened, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			db = opened
			defer db.Close()
		} else {
			logger.Warn("failed to open database, wishlist/sync-status commands unavailable", "error", err)
		}
	}

	runner, err := NewRunner(ctx, RunnerConfig{Config: config, DB: db, Logger: logger})
	if err != nil {
		logger.Fatalf("failed to initialize: %v", err)
	}

	app := &cli.Command{
		Name:    "mtap",
		Usage:   "Reconcile external playlists against a local media library and acquire what's missing",
		Version: "0.1.0",
		Commands: []*cli.Command{
			setupCommand(runner),
			syncCommand(runner),
			wishlistCommand(runner),
			statusCommand(runner),
			libraryCommand(runner),
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
