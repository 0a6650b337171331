package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wardrobehq/wardrobe/internal/store"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed store test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("wardrobe_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newPendingItem(owner uuid.UUID) *models.Item {
	now := time.Now().UTC()
	return &models.Item{
		ID:             uuid.New(),
		OwnerID:        owner,
		Status:         models.ItemStatusPending,
		StagingKey:     "staging/" + owner.String() + "/img.jpg",
		PerceptualHash: "abc1000000000000",
		Metadata: models.ItemMetadata{
			Category: models.DefaultCategory(),
			Colors:   []string{},
			Tags:     []string{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestItemLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := uuid.New()
	item := newPendingItem(owner)
	require.NoError(t, s.CreateItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPending, got.Status)
	assert.Equal(t, item.PerceptualHash, got.PerceptualHash)
	assert.Equal(t, models.DefaultCategory(), got.Metadata.Category)

	// pending -> processing
	require.NoError(t, s.UpdateStatus(ctx, item.ID, models.ItemStatusProcessing))

	// processing -> processed with metadata in one write
	meta := models.ItemMetadata{
		Category:    "bottoms",
		Subcategory: "jeans",
		Colors:      []string{"blue"},
		Description: "blue jeans",
		Tags:        []string{"denim"},
		Season:      "all",
	}
	processedKey := "staging/" + owner.String() + "/" + item.ID.String() + "-processed.png"
	require.NoError(t, s.SetProcessedResult(ctx, item.ID, processedKey, processedKey, meta))

	got, err = s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusProcessed, got.Status)
	assert.Equal(t, "bottoms", got.Metadata.Category)
	assert.Equal(t, []string{"blue"}, got.Metadata.Colors)
	assert.Equal(t, processedKey, got.StagingKey)
	assert.Nil(t, got.ErrorMessage)

	// processed -> completed via promotion
	permanent := "items/" + item.ID.String() + ".png"
	require.NoError(t, s.PromoteItem(ctx, item.ID, owner, permanent))

	got, err = s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusCompleted, got.Status)
	assert.Equal(t, permanent, got.ImageURL)
	assert.Empty(t, got.StagingKey)
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	item := newPendingItem(uuid.New())
	require.NoError(t, s.CreateItem(ctx, item))

	// pending -> completed skips the pipeline
	err := s.UpdateStatus(ctx, item.ID, models.ItemStatusCompleted)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// completed is terminal
	require.NoError(t, s.UpdateStatus(ctx, item.ID, models.ItemStatusProcessing))
	require.NoError(t, s.SetProcessedResult(ctx, item.ID, "k", "k", models.ItemMetadata{Category: "tops", Colors: []string{"red"}}))
	require.NoError(t, s.PromoteItem(ctx, item.ID, item.OwnerID, "items/x.png"))
	err = s.UpdateStatus(ctx, item.ID, models.ItemStatusProcessing)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// missing item
	err = s.UpdateStatus(ctx, uuid.New(), models.ItemStatusProcessing)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateStatusFailureRecordsError(t *testing.T) {
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	item := newPendingItem(uuid.New())
	require.NoError(t, s.CreateItem(ctx, item))
	require.NoError(t, s.UpdateStatus(ctx, item.ID, models.ItemStatusProcessing))

	err := s.UpdateStatus(ctx, item.ID, models.ItemStatusFailed,
		store.WithErrorMessage("transform service unavailable"),
		store.WithRetryIncrement())
	require.NoError(t, err)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "transform service unavailable", *got.ErrorMessage)
	assert.Equal(t, 1, got.RetryCount)

	// failed -> processing on redelivery clears the error
	require.NoError(t, s.UpdateStatus(ctx, item.ID, models.ItemStatusProcessing, store.WithClearedError()))
	got, err = s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ErrorMessage)
}

func TestListItemsFiltering(t *testing.T) {
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := uuid.New()
	other := uuid.New()

	completed := newPendingItem(owner)
	require.NoError(t, s.CreateItem(ctx, completed))
	require.NoError(t, s.UpdateStatus(ctx, completed.ID, models.ItemStatusProcessing))
	require.NoError(t, s.SetProcessedResult(ctx, completed.ID, "k", "k", models.ItemMetadata{Category: "tops", Colors: []string{"red"}}))
	require.NoError(t, s.PromoteItem(ctx, completed.ID, owner, "items/a.png"))

	pending := newPendingItem(owner)
	require.NoError(t, s.CreateItem(ctx, pending))

	foreign := newPendingItem(other)
	require.NoError(t, s.CreateItem(ctx, foreign))

	items, err := s.ListItems(ctx, store.ItemFilter{
		OwnerID:  owner,
		Statuses: []models.ItemStatus{models.ItemStatusCompleted},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, completed.ID, items[0].ID)

	items, err = s.ListItems(ctx, store.ItemFilter{OwnerID: owner})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.ListItems(ctx, store.ItemFilter{
		Statuses:      []models.ItemStatus{models.ItemStatusPending},
		UpdatedBefore: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteItem(t *testing.T) {
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	item := newPendingItem(uuid.New())
	require.NoError(t, s.CreateItem(ctx, item))
	require.NoError(t, s.DeleteItem(ctx, item.ID))

	_, err := s.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteItem(ctx, item.ID), store.ErrNotFound)
}
