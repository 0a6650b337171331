// Package main is the entrypoint for the wardrobe API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardrobehq/wardrobe/internal/api"
	"github.com/wardrobehq/wardrobe/internal/api/handler"
	"github.com/wardrobehq/wardrobe/internal/cache"
	"github.com/wardrobehq/wardrobe/internal/config"
	"github.com/wardrobehq/wardrobe/internal/dedup"
	"github.com/wardrobehq/wardrobe/internal/extract"
	"github.com/wardrobehq/wardrobe/internal/queue"
	"github.com/wardrobehq/wardrobe/internal/stager"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/internal/sweeper"
	"github.com/wardrobehq/wardrobe/internal/vision"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "vision_provider", cfg.Vision.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Object storage
	objects, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect object storage: %w", err)
	}
	slog.Info("object storage connected", "bucket", cfg.Storage.Bucket)

	// 6. Work queue
	q, err := queue.NewRabbitQueue(cfg.Queue)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer q.Close()
	slog.Info("queue connected")

	// 7. Vision provider for interactive analysis
	provider, err := vision.NewProvider(cfg.Vision)
	if err != nil {
		return fmt.Errorf("create vision provider: %w", err)
	}
	slog.Info("vision provider initialized", "provider", provider.Name())

	pgStore := store.NewPostgresStore(pool)
	upStager := stager.New(pgStore, objects, q, cfg.Pipeline.BatchConcurrency)
	detector := dedup.NewDetector(pgStore, cfg.Pipeline.DuplicateThreshold)
	extractor := extract.New(provider)
	sw := sweeper.New(pgStore, objects, cfg.Sweeper.MaxAge, cfg.Sweeper.Interval)

	// 8. Background sweep ticker
	go sw.Run(ctx)

	// 9. Build router with dependencies
	deps := api.Dependencies{
		HealthHandler: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": pgStore,
			"cache":    redisCache,
			"storage":  objects,
		}),
		UploadHandler:         handler.NewUploadHandler(upStager, detector),
		BatchUploadHandler:    handler.NewBatchUploadHandler(upStager, redisCache),
		GetItemHandler:        handler.NewGetItemHandler(pgStore, redisCache),
		ListItemsHandler:      handler.NewListItemsHandler(pgStore),
		ConfirmHandler:        handler.NewConfirmHandler(pgStore, objects, redisCache),
		DeleteItemHandler:     handler.NewDeleteItemHandler(pgStore, objects, redisCache),
		DuplicateCheckHandler: handler.NewDuplicateCheckHandler(detector),
		AnalyzeHandler:        handler.NewAnalyzeHandler(extractor),
		SweepHandler:          handler.NewSweepHandler(sw),
	}
	router := api.NewRouter(deps)

	// 10. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
