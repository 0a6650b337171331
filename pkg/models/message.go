package models

import "github.com/google/uuid"

// WorkMessage is the unit of work delivered to the ingestion worker.
// Delivery is at-least-once; all processing keyed on these fields must be
// idempotent.
type WorkMessage struct {
	ItemID         uuid.UUID `json:"item_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	StagingKey     string    `json:"staging_key"`
	PerceptualHash string    `json:"perceptual_hash,omitempty"`
}
