// Package pipeline runs the asynchronous processing for staged uploads:
// background removal and crop on one branch, metadata extraction on the
// other, joined into a single processed result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wardrobehq/wardrobe/internal/cache"
	"github.com/wardrobehq/wardrobe/internal/extract"
	"github.com/wardrobehq/wardrobe/internal/queue"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/internal/transform"
	"github.com/wardrobehq/wardrobe/internal/trim"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

const statusCacheTTL = 5 * time.Minute

// Pipeline processes one work message end to end. It is safe for
// concurrent use and idempotent under queue redelivery.
type Pipeline struct {
	store     store.Store
	objects   storage.ObjectStore
	remover   transform.BackgroundRemover
	trimmer   trim.Trimmer
	extractor *extract.Extractor
	cache     cache.Cache
}

func New(st store.Store, objects storage.ObjectStore, remover transform.BackgroundRemover, trimmer trim.Trimmer, extractor *extract.Extractor, c cache.Cache) *Pipeline {
	return &Pipeline{
		store:     st,
		objects:   objects,
		remover:   remover,
		trimmer:   trimmer,
		extractor: extractor,
		cache:     c,
	}
}

// Handle is the queue handler. Redeliveries of already-processed items
// are acknowledged without reprocessing; transient failures mark the
// item failed and ask the queue to redeliver.
func (p *Pipeline) Handle(ctx context.Context, msg models.WorkMessage, attempt int) queue.Disposition {
	log := slog.With("item_id", msg.ItemID, "attempt", attempt)

	if err := p.store.UpdateStatus(ctx, msg.ItemID, models.ItemStatusProcessing, store.WithClearedError()); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Item was deleted while queued. Nothing to do.
			log.Info("dropping message for deleted item")
			return queue.Ack
		case errors.Is(err, store.ErrInvalidTransition):
			// Redelivery of a finished item.
			log.Info("item already past processing, acknowledging redelivery")
			return queue.Ack
		default:
			log.Error("failed to claim item", "error", err)
			return queue.Retry
		}
	}
	p.cacheStatus(ctx, msg.ItemID, models.ItemStatusProcessing)

	original, err := p.objects.Get(ctx, msg.StagingKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The upload is gone for good; retrying cannot recover it.
			p.fail(ctx, msg.ItemID, log, fmt.Errorf("staging object missing: %s", msg.StagingKey))
			return queue.Ack
		}
		log.Error("failed to fetch staging object", "error", err)
		return p.retry(ctx, msg, log, err)
	}

	var (
		trimmed []byte
		meta    models.ItemMetadata
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cut, err := p.remover.RemoveBackground(gctx, original)
		if err != nil {
			return fmt.Errorf("background removal: %w", err)
		}
		trimmed, err = p.trimmer.Trim(gctx, cut)
		if err != nil {
			return fmt.Errorf("trim: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		meta = p.extractor.Extract(gctx, original, http.DetectContentType(original), extract.PipelineAttempts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return p.retry(ctx, msg, log, err)
	}

	processedKey := storage.ProcessedKey(msg.OwnerID, msg.ItemID)
	if err := p.objects.Put(ctx, processedKey, trimmed, "image/png"); err != nil {
		return p.retry(ctx, msg, log, fmt.Errorf("store processed artifact: %w", err))
	}

	if err := p.store.SetProcessedResult(ctx, msg.ItemID, processedKey, processedKey, meta); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			// Lost a race with a concurrent delivery or a delete.
			log.Info("item state changed underneath pipeline, acknowledging", "error", err)
			return queue.Ack
		}
		return p.retry(ctx, msg, log, fmt.Errorf("record result: %w", err))
	}
	p.cacheStatus(ctx, msg.ItemID, models.ItemStatusProcessed)

	// The raw upload is no longer needed. Failure here is harmless, the
	// sweeper reclaims stragglers.
	if err := p.objects.Delete(ctx, msg.StagingKey); err != nil {
		log.Warn("failed to delete staging object", "key", msg.StagingKey, "error", err)
	}

	log.Info("item processed", "category", meta.Category)
	return queue.Ack
}

// retry records the failure, removes the staging original so it cannot
// orphan, and asks for redelivery.
func (p *Pipeline) retry(ctx context.Context, msg models.WorkMessage, log *slog.Logger, cause error) queue.Disposition {
	log.Warn("processing failed, will retry", "error", cause)
	if err := p.store.UpdateStatus(ctx, msg.ItemID, models.ItemStatusFailed,
		store.WithErrorMessage(cause.Error()), store.WithRetryIncrement()); err != nil {
		log.Error("failed to record failure", "error", err)
	}
	if err := p.objects.Delete(ctx, msg.StagingKey); err != nil {
		log.Warn("failed to delete staging object", "key", msg.StagingKey, "error", err)
	}
	p.cacheStatus(ctx, msg.ItemID, models.ItemStatusFailed)
	return queue.Retry
}

// fail records a permanent failure. The caller acknowledges the message.
func (p *Pipeline) fail(ctx context.Context, itemID uuid.UUID, log *slog.Logger, cause error) {
	log.Error("processing failed permanently", "error", cause)
	if err := p.store.UpdateStatus(ctx, itemID, models.ItemStatusFailed,
		store.WithErrorMessage(cause.Error())); err != nil {
		log.Error("failed to record failure", "error", err)
	}
	p.cacheStatus(ctx, itemID, models.ItemStatusFailed)
}

func (p *Pipeline) cacheStatus(ctx context.Context, itemID uuid.UUID, status models.ItemStatus) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SetItemStatus(ctx, itemID, string(status), statusCacheTTL); err != nil {
		slog.Debug("failed to cache item status", "item_id", itemID, "error", err)
	}
}
