// Package stager accepts raw uploads and hands them to the pipeline:
// write the bytes to staging, insert a placeholder record, enqueue a
// work message. The caller gets an item id back immediately.
package stager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wardrobehq/wardrobe/internal/queue"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/pkg/models"
	"github.com/wardrobehq/wardrobe/pkg/phash"
)

var ErrUnsupportedType = errors.New("unsupported image type")

// extensions for the staging key, by sniffed content type.
var extByType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Upload is one staged upload request. Hash is the client-computed
// perceptual hash; when empty it is computed server-side.
type Upload struct {
	OwnerID uuid.UUID
	Data    []byte
	Hash    string
}

// Result reports the outcome of staging one upload.
type Result struct {
	ItemID uuid.UUID
	Hash   string
	Err    error
}

// Stager writes uploads to staging storage and enqueues pipeline work.
type Stager struct {
	store       store.Store
	objects     storage.ObjectStore
	queue       queue.Queue
	concurrency int
}

func New(st store.Store, objects storage.ObjectStore, q queue.Queue, batchConcurrency int) *Stager {
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}
	return &Stager{store: st, objects: objects, queue: q, concurrency: batchConcurrency}
}

// Stage persists one upload and enqueues it for processing. It returns
// as soon as the work message is on the queue; it never waits on image
// processing.
func (s *Stager) Stage(ctx context.Context, up Upload) (Result, error) {
	contentType := http.DetectContentType(up.Data)
	ext, ok := extByType[contentType]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	hash := up.Hash
	if hash == "" {
		computed, err := phash.FromBytes(up.Data)
		if err != nil {
			return Result{}, fmt.Errorf("compute perceptual hash: %w", err)
		}
		hash = computed
	} else if _, err := phash.Parse(hash); err != nil {
		return Result{}, fmt.Errorf("client hash: %w", err)
	}

	itemID := uuid.New()
	key := storage.StagingKey(up.OwnerID, itemID, ext)

	if err := s.objects.Put(ctx, key, up.Data, contentType); err != nil {
		return Result{}, fmt.Errorf("write staging object: %w", err)
	}

	now := time.Now().UTC()
	item := &models.Item{
		ID:             itemID,
		OwnerID:        up.OwnerID,
		Status:         models.ItemStatusPending,
		StagingKey:     key,
		PerceptualHash: hash,
		CreatedAt:      now,
		UpdatedAt:      now,
		// The schema enforces the closed category set before the
		// extractor has run, so seed with the sentinel.
		Metadata: models.ItemMetadata{
			Category: models.DefaultCategory(),
			Colors:   []string{"unknown"},
			Tags:     []string{},
		},
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		// The staging object stays behind for the sweeper.
		return Result{}, fmt.Errorf("create item record: %w", err)
	}

	msg := models.WorkMessage{
		ItemID:         itemID,
		OwnerID:        up.OwnerID,
		StagingKey:     key,
		PerceptualHash: hash,
	}
	if err := s.queue.Publish(ctx, msg); err != nil {
		// Best-effort rollback of the record; the staging object is the
		// sweeper's problem either way.
		if derr := s.store.DeleteItem(ctx, itemID); derr != nil {
			slog.Warn("failed to roll back item after enqueue failure",
				"item_id", itemID, "error", derr)
		}
		return Result{}, fmt.Errorf("enqueue work message: %w", err)
	}

	return Result{ItemID: itemID, Hash: hash}, nil
}

// StageBatch stages uploads with a bounded concurrency window. Each
// upload succeeds or fails independently; results keep input order.
func (s *Stager) StageBatch(ctx context.Context, uploads []Upload) []Result {
	results := make([]Result, len(uploads))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, up := range uploads {
		wg.Add(1)
		go func(i int, up Upload) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res, err := s.Stage(ctx, up)
			res.Err = err
			results[i] = res
		}(i, up)
	}
	wg.Wait()
	return results
}
