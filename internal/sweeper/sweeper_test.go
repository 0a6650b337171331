package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardrobehq/wardrobe/internal/storage"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

const maxAge = 4 * time.Hour

type fixture struct {
	store   *store.MemoryStore
	objects *storage.MemoryStore
	sweeper *Sweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	objects := storage.NewMemoryStore()
	return &fixture{
		store:   st,
		objects: objects,
		sweeper: New(st, objects, maxAge, time.Hour),
	}
}

func (f *fixture) addItem(t *testing.T, status models.ItemStatus) *models.Item {
	t.Helper()
	item := &models.Item{
		ID:       uuid.New(),
		OwnerID:  uuid.New(),
		Status:   status,
		Metadata: models.ItemMetadata{Category: models.DefaultCategory(), Colors: []string{"unknown"}},
	}
	require.NoError(t, f.store.CreateItem(context.Background(), item))
	return item
}

// addStagingObject writes a staging blob for the item, backdated by age.
func (f *fixture) addStagingObject(t *testing.T, item *models.Item, age time.Duration) string {
	t.Helper()
	key := storage.StagingKey(item.OwnerID, item.ID, "png")
	require.NoError(t, f.objects.Put(context.Background(), key, []byte("img"), "image/png"))
	f.objects.SetModified(key, time.Now().Add(-age))
	return key
}

func TestSweepDeletesStaleStagingForDeadItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	failed := f.addItem(t, models.ItemStatusFailed)
	staleKey := f.addStagingObject(t, failed, 5*time.Hour)

	// Orphan blob with no record at all.
	orphan := &models.Item{ID: uuid.New(), OwnerID: uuid.New()}
	orphanKey := f.addStagingObject(t, orphan, 5*time.Hour)

	stats, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.StaleStagingObjects)

	_, err = f.objects.Get(ctx, staleKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.objects.Get(ctx, orphanKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweepKeepsFreshAndHealthyStaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Fresh upload of a pending item, inside the age window.
	pending := f.addItem(t, models.ItemStatusPending)
	freshKey := f.addStagingObject(t, pending, time.Minute)

	// Old but processed: awaiting confirmation is pass 2's business,
	// the staging pass leaves it alone.
	processed := f.addItem(t, models.ItemStatusProcessed)
	processedKey := f.addStagingObject(t, processed, 5*time.Hour)

	stats, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.StaleStagingObjects)

	_, err = f.objects.Get(ctx, freshKey)
	assert.NoError(t, err)
	_, err = f.objects.Get(ctx, processedKey)
	assert.NoError(t, err)
}

func TestSweepDeletesAbandonedProcessedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.addItem(t, models.ItemStatusProcessed)
	key := storage.ProcessedKey(item.OwnerID, item.ID)
	require.NoError(t, f.objects.Put(ctx, key, []byte("img"), "image/png"))
	f.store.SetUpdatedAt(item.ID, time.Now().Add(-5*time.Hour))

	stats, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AbandonedItems)

	_, err = f.store.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.objects.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweepKeepsRecentProcessedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.addItem(t, models.ItemStatusProcessed)

	stats, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AbandonedItems)

	_, err = f.store.GetItem(ctx, item.ID)
	assert.NoError(t, err)
}

func TestSweepDeletesOrphanedPermanentObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	completed := f.addItem(t, models.ItemStatusCompleted)
	keptKey := storage.PermanentKey(completed.ID)
	require.NoError(t, f.objects.Put(ctx, keptKey, []byte("img"), "image/png"))

	orphanKey := storage.PermanentKey(uuid.New())
	require.NoError(t, f.objects.Put(ctx, orphanKey, []byte("img"), "image/png"))

	stats, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OrphanedObjects)

	_, err = f.objects.Get(ctx, keptKey)
	assert.NoError(t, err)
	_, err = f.objects.Get(ctx, orphanKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFullReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Fresh staging objects go too; reset is not time-gated.
	pending := f.addItem(t, models.ItemStatusPending)
	f.addStagingObject(t, pending, time.Minute)
	failed := f.addItem(t, models.ItemStatusFailed)
	f.addStagingObject(t, failed, time.Minute)

	completed := f.addItem(t, models.ItemStatusCompleted)
	completedKey := storage.PermanentKey(completed.ID)
	require.NoError(t, f.objects.Put(ctx, completedKey, []byte("img"), "image/png"))

	_, err := f.sweeper.FullReset(ctx)
	require.NoError(t, err)

	// Non-completed records gone, completed untouched.
	_, err = f.store.GetItem(ctx, pending.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.GetItem(ctx, failed.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	item, err := f.store.GetItem(ctx, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusCompleted, item.Status)
	_, err = f.objects.Get(ctx, completedKey)
	assert.NoError(t, err)

	// All staging cleared.
	infos, err := f.objects.List(ctx, storage.StagingPrefix)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestItemIDFromKey(t *testing.T) {
	owner := uuid.New()
	id := uuid.New()

	got, ok := itemIDFromKey(storage.StagingKey(owner, id, "jpg"))
	require.True(t, ok)
	assert.Equal(t, id, got)

	got, ok = itemIDFromKey(storage.ProcessedKey(owner, id))
	require.True(t, ok)
	assert.Equal(t, id, got)

	got, ok = itemIDFromKey(storage.PermanentKey(id))
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = itemIDFromKey("staging/garbage/readme.txt")
	assert.False(t, ok)
}
