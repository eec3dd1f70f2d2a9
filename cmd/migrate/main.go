package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/config"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/logger"
)

const usage = "usage: migrate [up|down|status|version]"

var commands = map[string]bool{
	"up":      true,
	"down":    true,
	"status":  true,
	"version": true,
}

func main() {
	if len(os.Args) < 2 || !commands[os.Args[1]] {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "olivegrove-migrate",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithField(context.Background(), "command", command)

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logg.Error(ctx, "database.connect_failed", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, command, os.Args[2:]...); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		db.Close()
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}
