package queue

import (
	"context"
	"sync"

	"github.com/wardrobehq/wardrobe/pkg/models"
)

type memoryDelivery struct {
	msg     models.WorkMessage
	attempt int
}

// MemoryQueue is an in-process Queue for tests. It mirrors the RabbitMQ
// implementation's bounded-retry behavior.
type MemoryQueue struct {
	mu          sync.Mutex
	buf         chan memoryDelivery
	maxAttempts int
	dropped     []models.WorkMessage
	closed      bool
}

func NewMemoryQueue(maxAttempts int) *MemoryQueue {
	return &MemoryQueue{
		buf:         make(chan memoryDelivery, 256),
		maxAttempts: maxAttempts,
	}
}

func (q *MemoryQueue) Publish(_ context.Context, msg models.WorkMessage) error {
	q.buf <- memoryDelivery{msg: msg, attempt: 1}
	return nil
}

func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-q.buf:
			if !ok {
				return nil
			}
			if handler(ctx, d.msg, d.attempt) == Retry {
				if d.attempt >= q.maxAttempts {
					q.mu.Lock()
					q.dropped = append(q.dropped, d.msg)
					q.mu.Unlock()
					continue
				}
				q.buf <- memoryDelivery{msg: d.msg, attempt: d.attempt + 1}
			}
		}
	}
}

// ConsumeOne delivers a single pending message synchronously, requeueing on
// Retry. Returns false when the queue is empty.
func (q *MemoryQueue) ConsumeOne(ctx context.Context, handler Handler) bool {
	select {
	case d := <-q.buf:
		if handler(ctx, d.msg, d.attempt) == Retry {
			if d.attempt >= q.maxAttempts {
				q.mu.Lock()
				q.dropped = append(q.dropped, d.msg)
				q.mu.Unlock()
				return true
			}
			q.buf <- memoryDelivery{msg: d.msg, attempt: d.attempt + 1}
		}
		return true
	default:
		return false
	}
}

// Pending reports the number of undelivered messages.
func (q *MemoryQueue) Pending() int { return len(q.buf) }

// Dropped returns messages that exhausted their retries.
func (q *MemoryQueue) Dropped() []models.WorkMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.WorkMessage, len(q.dropped))
	copy(out, q.dropped)
	return out
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.buf)
	}
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
