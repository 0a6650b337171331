package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

const itemColumns = `id, owner_id, status, staging_key, image_url, perceptual_hash,
	category, subcategory, colors, brand, description, tags, material, fit, style, season, boldness,
	size, cost_cents, purchase_date, notes,
	error_message, retry_count, created_at, updated_at`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateItem(ctx context.Context, item *models.Item) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO items (id, owner_id, status, staging_key, image_url, perceptual_hash,
			category, subcategory, colors, brand, description, tags, material, fit, style, season, boldness,
			size, cost_cents, purchase_date, notes, error_message, retry_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25)`,
		item.ID, item.OwnerID, item.Status, item.StagingKey, item.ImageURL, item.PerceptualHash,
		item.Metadata.Category, item.Metadata.Subcategory, item.Metadata.Colors, item.Metadata.Brand,
		item.Metadata.Description, item.Metadata.Tags, item.Metadata.Material, item.Metadata.Fit,
		item.Metadata.Style, item.Metadata.Season, item.Metadata.Boldness,
		item.Size, item.CostCents, item.PurchaseDate, item.Notes,
		item.ErrorMessage, item.RetryCount, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != uuid.Nil {
		conds = append(conds, "owner_id = "+arg(filter.OwnerID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if !filter.UpdatedBefore.IsZero() {
		conds = append(conds, "updated_at < "+arg(filter.UpdatedBefore))
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ItemStatus, opts ...UpdateOption) error {
	var p updateParams
	for _, opt := range opts {
		opt(&p)
	}

	sets := []string{"status = $2", "updated_at = NOW()"}
	args := []any{id, status}
	if p.ErrorMessage != nil {
		args = append(args, *p.ErrorMessage)
		sets = append(sets, fmt.Sprintf("error_message = $%d", len(args)))
	} else if p.ClearError {
		sets = append(sets, "error_message = NULL")
	}
	if p.IncrementRetry {
		sets = append(sets, "retry_count = retry_count + 1")
	}

	args = append(args, transitionSources(status))
	query := fmt.Sprintf(`UPDATE items SET %s WHERE id = $1 AND status = ANY($%d)`,
		strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

func (s *PostgresStore) SetProcessedResult(ctx context.Context, id uuid.UUID, stagingKey, imageURL string, meta models.ItemMetadata) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE items SET status = $2, staging_key = $3, image_url = $4,
			category = $5, subcategory = $6, colors = $7, brand = $8, description = $9,
			tags = $10, material = $11, fit = $12, style = $13, season = $14, boldness = $15,
			error_message = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = ANY($16)`,
		id, models.ItemStatusProcessed, stagingKey, imageURL,
		meta.Category, meta.Subcategory, meta.Colors, meta.Brand, meta.Description,
		meta.Tags, meta.Material, meta.Fit, meta.Style, meta.Season, meta.Boldness,
		transitionSources(models.ItemStatusProcessed))
	if err != nil {
		return fmt.Errorf("set processed result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

func (s *PostgresStore) PromoteItem(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, imageURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE items SET status = $3, image_url = $4, staging_key = '', updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND status = $5`,
		id, ownerID, models.ItemStatusCompleted, imageURL, models.ItemStatusProcessed)
	if err != nil {
		return fmt.Errorf("promote item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

// transitionError disambiguates a zero-row conditional update: the item is
// either missing or in a status that forbids the move.
func (s *PostgresStore) transitionError(ctx context.Context, id uuid.UUID) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM items WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect item status: %w", err)
	}
	return fmt.Errorf("%w: from %q", ErrInvalidTransition, current)
}

// transitionSources lists the statuses from which a move to target is legal.
func transitionSources(target models.ItemStatus) []string {
	all := []models.ItemStatus{
		models.ItemStatusPending, models.ItemStatusProcessing,
		models.ItemStatusProcessed, models.ItemStatusCompleted, models.ItemStatusFailed,
	}
	var sources []string
	for _, from := range all {
		if models.CanTransition(from, target) {
			sources = append(sources, string(from))
		}
	}
	return sources
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var it models.Item
	err := row.Scan(
		&it.ID, &it.OwnerID, &it.Status, &it.StagingKey, &it.ImageURL, &it.PerceptualHash,
		&it.Metadata.Category, &it.Metadata.Subcategory, &it.Metadata.Colors, &it.Metadata.Brand,
		&it.Metadata.Description, &it.Metadata.Tags, &it.Metadata.Material, &it.Metadata.Fit,
		&it.Metadata.Style, &it.Metadata.Season, &it.Metadata.Boldness,
		&it.Size, &it.CostCents, &it.PurchaseDate, &it.Notes,
		&it.ErrorMessage, &it.RetryCount, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}
