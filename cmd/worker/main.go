// Package main is the entrypoint for the ingestion worker: it consumes
// work messages and runs the processing pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wardrobehq/wardrobe/internal/cache"
	"github.com/wardrobehq/wardrobe/internal/config"
	"github.com/wardrobehq/wardrobe/internal/extract"
	"github.com/wardrobehq/wardrobe/internal/pipeline"
	"github.com/wardrobehq/wardrobe/internal/queue"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/internal/transform"
	"github.com/wardrobehq/wardrobe/internal/trim"
	"github.com/wardrobehq/wardrobe/internal/vision"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"vision_provider", cfg.Vision.Provider,
		"prefetch", cfg.Queue.Prefetch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	objects, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect object storage: %w", err)
	}
	slog.Info("object storage connected", "bucket", cfg.Storage.Bucket)

	q, err := queue.NewRabbitQueue(cfg.Queue)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer q.Close()
	slog.Info("queue connected")

	provider, err := vision.NewProvider(cfg.Vision)
	if err != nil {
		return fmt.Errorf("create vision provider: %w", err)
	}
	slog.Info("vision provider initialized", "provider", provider.Name())

	pipe := pipeline.New(
		store.NewPostgresStore(pool),
		objects,
		transform.NewClient(cfg.Transform),
		trim.NewClient(cfg.Trimmer.BaseURL, cfg.Trimmer.Timeout),
		extract.New(provider),
		redisCache,
	)

	slog.Info("worker consuming")
	if err := q.Consume(ctx, pipe.Handle); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}
