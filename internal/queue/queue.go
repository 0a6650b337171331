package queue

import (
	"context"

	"github.com/wardrobehq/wardrobe/pkg/models"
)

// Disposition is the handler's verdict on a delivery.
type Disposition int

const (
	// Ack removes the message from the queue.
	Ack Disposition = iota
	// Retry returns the message for redelivery, bounded by the queue's
	// attempt limit; an exhausted message is dropped.
	Retry
)

// Handler processes one delivery. attempt is 1-based.
type Handler func(ctx context.Context, msg models.WorkMessage, attempt int) Disposition

// Queue is the durable work queue interface. Delivery is at-least-once;
// handlers must be idempotent.
type Queue interface {
	Publish(ctx context.Context, msg models.WorkMessage) error
	// Consume blocks delivering messages to handler until ctx is done.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
