package stager

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardrobehq/wardrobe/internal/queue"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// failingQueue rejects every publish.
type failingQueue struct{}

func (failingQueue) Publish(context.Context, models.WorkMessage) error {
	return errors.New("broker unavailable")
}
func (failingQueue) Consume(context.Context, queue.Handler) error { return nil }
func (failingQueue) Close() error                                 { return nil }

func TestStageCreatesRecordObjectAndMessage(t *testing.T) {
	st := store.NewMemoryStore()
	objects := storage.NewMemoryStore()
	q := queue.NewMemoryQueue(3)
	s := New(st, objects, q, 6)
	ctx := context.Background()
	owner := uuid.New()

	res, err := s.Stage(ctx, Upload{OwnerID: owner, Data: samplePNG(t)})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.ItemID)
	assert.Len(t, res.Hash, 16)

	item, err := st.GetItem(ctx, res.ItemID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPending, item.Status)
	assert.Equal(t, owner, item.OwnerID)
	assert.Equal(t, res.Hash, item.PerceptualHash)
	assert.Equal(t, models.DefaultCategory(), item.Metadata.Category)

	data, err := objects.Get(ctx, item.StagingKey)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Equal(t, 1, q.Pending())
}

// recordingStore captures the item handed to CreateItem before the
// backing store can backfill anything.
type recordingStore struct {
	*store.MemoryStore
	created *models.Item
}

func (s *recordingStore) CreateItem(ctx context.Context, item *models.Item) error {
	cp := *item
	s.created = &cp
	return s.MemoryStore.CreateItem(ctx, item)
}

func TestStageSetsTimestamps(t *testing.T) {
	st := &recordingStore{MemoryStore: store.NewMemoryStore()}
	s := New(st, storage.NewMemoryStore(), queue.NewMemoryQueue(3), 6)

	_, err := s.Stage(context.Background(), Upload{OwnerID: uuid.New(), Data: samplePNG(t)})
	require.NoError(t, err)

	// The record must carry real timestamps going into the store; a
	// backend inserting the columns verbatim would otherwise write the
	// zero time and break created-at ordering.
	require.NotNil(t, st.created)
	assert.False(t, st.created.CreatedAt.IsZero())
	assert.False(t, st.created.UpdatedAt.IsZero())
	assert.Equal(t, st.created.CreatedAt, st.created.UpdatedAt)
}

func TestStageKeepsClientHash(t *testing.T) {
	s := New(store.NewMemoryStore(), storage.NewMemoryStore(), queue.NewMemoryQueue(3), 6)

	res, err := s.Stage(context.Background(), Upload{
		OwnerID: uuid.New(),
		Data:    samplePNG(t),
		Hash:    "00ff00ff00ff00ff",
	})
	require.NoError(t, err)
	assert.Equal(t, "00ff00ff00ff00ff", res.Hash)
}

func TestStageRejectsMalformedClientHash(t *testing.T) {
	s := New(store.NewMemoryStore(), storage.NewMemoryStore(), queue.NewMemoryQueue(3), 6)

	_, err := s.Stage(context.Background(), Upload{
		OwnerID: uuid.New(),
		Data:    samplePNG(t),
		Hash:    "nope",
	})
	assert.Error(t, err)
}

func TestStageRejectsNonImage(t *testing.T) {
	s := New(store.NewMemoryStore(), storage.NewMemoryStore(), queue.NewMemoryQueue(3), 6)

	_, err := s.Stage(context.Background(), Upload{
		OwnerID: uuid.New(),
		Data:    []byte("definitely not an image"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestStageRollsBackRecordOnEnqueueFailure(t *testing.T) {
	st := store.NewMemoryStore()
	objects := storage.NewMemoryStore()
	s := New(st, objects, failingQueue{}, 6)
	ctx := context.Background()

	_, err := s.Stage(ctx, Upload{OwnerID: uuid.New(), Data: samplePNG(t)})
	require.Error(t, err)

	// Record rolled back; the orphaned staging object is left for the
	// sweeper.
	items, err := st.ListItems(ctx, store.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 1, objects.Len())
}

func TestStageBatchIndependentResults(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue(3)
	s := New(st, storage.NewMemoryStore(), q, 3)
	ctx := context.Background()
	owner := uuid.New()

	good := samplePNG(t)
	uploads := []Upload{
		{OwnerID: owner, Data: good},
		{OwnerID: owner, Data: []byte("junk")},
		{OwnerID: owner, Data: good},
	}
	results := s.StageBatch(ctx, uploads)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrUnsupportedType)
	assert.NoError(t, results[2].Err)

	items, err := st.ListItems(ctx, store.ItemFilter{OwnerID: owner})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, q.Pending())
}
