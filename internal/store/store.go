package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// UpdateStatus moves an item to the given status, enforcing the
	// transition table atomically. Returns ErrInvalidTransition when the
	// item's current status does not permit the move.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ItemStatus, opts ...UpdateOption) error

	// SetProcessedResult writes the pipeline's output in one update:
	// metadata, the processed artifact key, and the processed status.
	SetProcessedResult(ctx context.Context, id uuid.UUID, stagingKey, imageURL string, meta models.ItemMetadata) error

	// PromoteItem flips a processed item to completed and repoints its
	// image at permanent storage.
	PromoteItem(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, imageURL string) error
}

// ItemFilter narrows ListItems. Zero fields are ignored.
type ItemFilter struct {
	OwnerID       uuid.UUID
	Statuses      []models.ItemStatus
	UpdatedBefore time.Time
	Limit         int
}

type updateParams struct {
	ErrorMessage   *string
	ClearError     bool
	IncrementRetry bool
}

type UpdateOption func(*updateParams)

func WithErrorMessage(msg string) UpdateOption {
	return func(p *updateParams) {
		p.ErrorMessage = &msg
	}
}

func WithClearedError() UpdateOption {
	return func(p *updateParams) {
		p.ClearError = true
	}
}

func WithRetryIncrement() UpdateOption {
	return func(p *updateParams) {
		p.IncrementRetry = true
	}
}
