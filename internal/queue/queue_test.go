package queue

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

func newMsg() models.WorkMessage {
	return models.WorkMessage{
		ItemID:         uuid.New(),
		OwnerID:        uuid.New(),
		StagingKey:     "staging/x/y.jpg",
		PerceptualHash: "abc1000000000000",
	}
}

func TestMemoryQueueAck(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	msg := newMsg()
	require.NoError(t, q.Publish(ctx, msg))

	var got models.WorkMessage
	var attempt int
	ok := q.ConsumeOne(ctx, func(_ context.Context, m models.WorkMessage, a int) Disposition {
		got, attempt = m, a
		return Ack
	})
	require.True(t, ok)
	assert.Equal(t, msg, got)
	assert.Equal(t, 1, attempt)
	assert.Zero(t, q.Pending())
}

func TestMemoryQueueBoundedRetry(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)
	require.NoError(t, q.Publish(ctx, newMsg()))

	var attempts []int
	for q.ConsumeOne(ctx, func(_ context.Context, _ models.WorkMessage, a int) Disposition {
		attempts = append(attempts, a)
		return Retry
	}) {
	}

	// Delivered exactly maxAttempts times, then dropped rather than
	// resurrected.
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Zero(t, q.Pending())
	assert.Len(t, q.Dropped(), 1)
}

func TestMemoryQueueRetryThenSucceed(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)
	require.NoError(t, q.Publish(ctx, newMsg()))

	calls := 0
	for q.ConsumeOne(ctx, func(_ context.Context, _ models.WorkMessage, a int) Disposition {
		calls++
		if a < 2 {
			return Retry
		}
		return Ack
	}) {
	}

	assert.Equal(t, 2, calls)
	assert.Empty(t, q.Dropped())
}
