// Package sweeper reconciles storage and database state: uploads that
// never finished, processed items nobody confirmed, and blobs whose
// records are gone. It operates only through the Store and ObjectStore
// interfaces.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

// Stats counts what one sweep removed.
type Stats struct {
	StaleStagingObjects int `json:"stale_staging_objects"`
	AbandonedItems      int `json:"abandoned_items"`
	OrphanedObjects     int `json:"orphaned_objects"`
}

// Sweeper runs the reconciliation passes.
type Sweeper struct {
	store    store.Store
	objects  storage.ObjectStore
	maxAge   time.Duration
	interval time.Duration
}

func New(st store.Store, objects storage.ObjectStore, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{store: st, objects: objects, maxAge: maxAge, interval: interval}
}

// Run sweeps on a ticker until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.Sweep(ctx)
			if err != nil {
				slog.Error("sweep failed", "error", err)
				continue
			}
			slog.Info("sweep complete",
				"stale_staging", stats.StaleStagingObjects,
				"abandoned_items", stats.AbandonedItems,
				"orphaned_objects", stats.OrphanedObjects)
		}
	}
}

// Sweep runs the three passes once. Passes are independent; a failure in
// one does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (Stats, error) {
	var stats Stats
	var errs []error

	n, err := s.sweepStaleStaging(ctx)
	stats.StaleStagingObjects = n
	if err != nil {
		errs = append(errs, fmt.Errorf("stale staging pass: %w", err))
	}

	n, err = s.sweepAbandonedItems(ctx)
	stats.AbandonedItems = n
	if err != nil {
		errs = append(errs, fmt.Errorf("abandoned items pass: %w", err))
	}

	n, err = s.sweepOrphanedObjects(ctx)
	stats.OrphanedObjects = n
	if err != nil {
		errs = append(errs, fmt.Errorf("orphaned objects pass: %w", err))
	}

	return stats, errors.Join(errs...)
}

// sweepStaleStaging deletes staging objects older than maxAge whose item
// is missing, failed, or still short of processed despite its age.
func (s *Sweeper) sweepStaleStaging(ctx context.Context) (int, error) {
	infos, err := s.objects.List(ctx, storage.StagingPrefix)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, info := range infos {
		if info.LastModified.After(cutoff) {
			continue
		}
		itemID, ok := itemIDFromKey(info.Key)
		if !ok {
			// Unparseable key under our prefix, reclaim it.
			removed += s.deleteObject(ctx, info.Key)
			continue
		}
		item, err := s.store.GetItem(ctx, itemID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			removed += s.deleteObject(ctx, info.Key)
		case err != nil:
			return removed, err
		case item.Status == models.ItemStatusFailed,
			item.Status == models.ItemStatusPending,
			item.Status == models.ItemStatusProcessing:
			removed += s.deleteObject(ctx, info.Key)
		}
	}
	return removed, nil
}

// sweepAbandonedItems deletes processed items the user never confirmed,
// record and staging artifact both.
func (s *Sweeper) sweepAbandonedItems(ctx context.Context) (int, error) {
	items, err := s.store.ListItems(ctx, store.ItemFilter{
		Statuses:      []models.ItemStatus{models.ItemStatusProcessed},
		UpdatedBefore: time.Now().Add(-s.maxAge),
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range items {
		s.deleteObject(ctx, storage.ProcessedKey(item.OwnerID, item.ID))
		if item.StagingKey != "" {
			s.deleteObject(ctx, item.StagingKey)
		}
		if err := s.store.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// sweepOrphanedObjects deletes permanent-prefix blobs with no item row,
// covering crashes between image write and record write.
func (s *Sweeper) sweepOrphanedObjects(ctx context.Context) (int, error) {
	infos, err := s.objects.List(ctx, storage.PermanentPrefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range infos {
		itemID, ok := itemIDFromKey(info.Key)
		if !ok {
			removed += s.deleteObject(ctx, info.Key)
			continue
		}
		_, err := s.store.GetItem(ctx, itemID)
		if errors.Is(err, store.ErrNotFound) {
			removed += s.deleteObject(ctx, info.Key)
			continue
		}
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// FullReset wipes all staging objects and every non-completed record and
// its images. Administrative use only; never runs on the timer.
func (s *Sweeper) FullReset(ctx context.Context) (Stats, error) {
	var stats Stats

	infos, err := s.objects.List(ctx, storage.StagingPrefix)
	if err != nil {
		return stats, fmt.Errorf("list staging: %w", err)
	}
	for _, info := range infos {
		stats.StaleStagingObjects += s.deleteObject(ctx, info.Key)
	}

	items, err := s.store.ListItems(ctx, store.ItemFilter{
		Statuses: []models.ItemStatus{
			models.ItemStatusPending,
			models.ItemStatusProcessing,
			models.ItemStatusProcessed,
			models.ItemStatusFailed,
		},
	})
	if err != nil {
		return stats, fmt.Errorf("list non-completed items: %w", err)
	}
	for _, item := range items {
		s.deleteObject(ctx, storage.PermanentKey(item.ID))
		if err := s.store.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return stats, err
		}
		stats.AbandonedItems++
	}
	return stats, nil
}

func (s *Sweeper) deleteObject(ctx context.Context, key string) int {
	if err := s.objects.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete object", "key", key, "error", err)
		return 0
	}
	return 1
}

// itemIDFromKey recovers the item id from a staging or permanent key.
// Keys look like staging/{owner}/{id}.{ext},
// staging/{owner}/{id}-processed.png, or items/{id}.png.
func itemIDFromKey(key string) (uuid.UUID, bool) {
	base := path.Base(key)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.TrimSuffix(base, "-processed")
	id, err := uuid.Parse(base)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
