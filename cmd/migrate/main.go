// Package main runs database migrations and exits.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/wardrobehq/wardrobe/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	dir := flag.String("dir", "migrations", "path to the migrations directory")
	flag.Parse()

	if err := run(*dir); err != nil {
		slog.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if err := store.RunMigrations(databaseURL, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("migrations applied", "dir", dir)
	return nil
}
