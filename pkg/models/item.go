package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle state of a catalog item.
type ItemStatus string

const (
	// ItemStatusPending is set when the upload has been staged and queued.
	ItemStatusPending ItemStatus = "pending"
	// ItemStatusProcessing is set when a worker has dequeued the item.
	ItemStatusProcessing ItemStatus = "processing"
	// ItemStatusProcessed means trim and analysis both succeeded and the
	// item awaits user confirmation.
	ItemStatusProcessed ItemStatus = "processed"
	// ItemStatusCompleted is the terminal success state, set on promotion.
	ItemStatusCompleted ItemStatus = "completed"
	// ItemStatusFailed is the terminal failure state.
	ItemStatusFailed ItemStatus = "failed"
)

// transitions is the closed set of legal status moves. Redelivery of a
// queue message may re-enter processing from processing or failed.
var transitions = map[ItemStatus]map[ItemStatus]bool{
	ItemStatusPending: {
		ItemStatusProcessing: true,
		ItemStatusFailed:     true,
	},
	ItemStatusProcessing: {
		ItemStatusProcessing: true,
		ItemStatusProcessed:  true,
		ItemStatusFailed:     true,
	},
	ItemStatusProcessed: {
		ItemStatusCompleted: true,
		ItemStatusFailed:    true,
	},
	ItemStatusFailed: {
		ItemStatusProcessing: true,
	},
	ItemStatusCompleted: {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to ItemStatus) bool {
	return transitions[from][to]
}

// Valid reports whether s is a member of the closed status set.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusProcessed,
		ItemStatusCompleted, ItemStatusFailed:
		return true
	}
	return false
}

// Categories is the closed set of clothing categories. The first entry is
// the fallback default when analysis cannot produce one.
var Categories = []string{"tops", "bottoms", "shoes", "outerwear", "accessories"}

// DefaultCategory is used for placeholder records and analysis fallback.
func DefaultCategory() string { return Categories[0] }

// ValidCategory reports whether c is a member of the closed category set.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ItemMetadata holds the AI-derived attributes of an item. Every field may
// be absent; rendering and matching must tolerate zero values.
type ItemMetadata struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Material    string   `json:"material,omitempty"`
	Fit         string   `json:"fit,omitempty"`
	Style       string   `json:"style,omitempty"`
	Season      string   `json:"season,omitempty"`
	Boldness    string   `json:"boldness,omitempty"`
}

// Item is the central catalog entity.
type Item struct {
	ID      uuid.UUID  `json:"id"`
	OwnerID uuid.UUID  `json:"owner_id"`
	Status  ItemStatus `json:"status"`

	// StagingKey points at the item's image while it is not yet completed;
	// ImageURL points at the current artifact (staging until promotion,
	// permanent after). The two never reference both locations for the
	// same artifact.
	StagingKey     string `json:"staging_key,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`

	Metadata ItemMetadata `json:"metadata"`

	// User-editable attributes, owned by the UI layer.
	Size         string     `json:"size,omitempty"`
	CostCents    *int64     `json:"cost_cents,omitempty"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	Notes        string     `json:"notes,omitempty"`

	ErrorMessage *string   `json:"error_message,omitempty"`
	RetryCount   int       `json:"retry_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
