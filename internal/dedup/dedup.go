// Package dedup flags perceptually near-duplicate uploads. The verdict
// is advisory: callers decide whether to block, warn, or ignore.
package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/pkg/models"
	"github.com/wardrobehq/wardrobe/pkg/phash"
)

// Match is the nearest duplicate within the threshold.
type Match struct {
	Item     *models.Item `json:"item"`
	Distance int          `json:"distance"`
}

// Detector compares candidate fingerprints against the owner's completed
// items. Only completed items participate: uploads still pending
// confirmation must not warn against themselves or each other.
type Detector struct {
	store     store.Store
	threshold int
}

func NewDetector(st store.Store, threshold int) *Detector {
	return &Detector{store: st, threshold: threshold}
}

// Check returns the nearest completed item within the Hamming threshold,
// or nil when there is no duplicate.
func (d *Detector) Check(ctx context.Context, ownerID uuid.UUID, hash string) (*Match, error) {
	if _, err := phash.Parse(hash); err != nil {
		return nil, fmt.Errorf("candidate hash: %w", err)
	}

	items, err := d.store.ListItems(ctx, store.ItemFilter{
		OwnerID:  ownerID,
		Statuses: []models.ItemStatus{models.ItemStatusCompleted},
	})
	if err != nil {
		return nil, fmt.Errorf("list completed items: %w", err)
	}

	var best *Match
	for _, item := range items {
		if item.PerceptualHash == "" {
			continue
		}
		dist, err := phash.Distance(hash, item.PerceptualHash)
		if err != nil {
			// A malformed stored hash degrades to "not a candidate".
			slog.Warn("skipping item with malformed perceptual hash",
				"item_id", item.ID, "error", err)
			continue
		}
		if dist > d.threshold {
			continue
		}
		if best == nil || dist < best.Distance {
			best = &Match{Item: item, Distance: dist}
		}
	}
	return best, nil
}
