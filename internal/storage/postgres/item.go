package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/sqshop/internal/domain/catalog"
)

const itemColumns = `id, name, size, price, discount_price, category, label, slug, available,
	description, additional_information, image_key, created_at, updated_at`

var _ catalog.Repository = (*ItemRepository)(nil)

// ItemRepository implements catalog.Repository backed by PostgreSQL.
type ItemRepository struct {
	db *DB
}

// NewItemRepository returns an ItemRepository on db.
func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item and fills its timestamps.
func (r *ItemRepository) Create(ctx context.Context, it *catalog.Item) error {
	err := r.db.conn(ctx).QueryRow(ctx, `INSERT INTO items (
		id, name, size, price, discount_price, category, label, slug, available,
		description, additional_information, image_key
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING created_at, updated_at`,
		it.ID, it.Name, it.Size, it.Price, it.DiscountPrice, it.Category, it.Label, it.Slug,
		it.Available, it.Description, it.AdditionalInformation, it.ImageKey,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrSlugTaken
		}
		return fmt.Errorf("creating item %q: %w", it.ID, err)
	}
	return nil
}

// Update writes every editable column of an existing item.
func (r *ItemRepository) Update(ctx context.Context, it *catalog.Item) error {
	err := r.db.conn(ctx).QueryRow(ctx, `UPDATE items SET
		name = $2, size = $3, price = $4, discount_price = $5, category = $6, label = $7,
		slug = $8, available = $9, description = $10, additional_information = $11,
		updated_at = now()
	WHERE id = $1
	RETURNING updated_at`,
		it.ID, it.Name, it.Size, it.Price, it.DiscountPrice, it.Category, it.Label, it.Slug,
		it.Available, it.Description, it.AdditionalInformation,
	).Scan(&it.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return catalog.ErrNotFound
		case isUniqueViolation(err):
			return catalog.ErrSlugTaken
		}
		return fmt.Errorf("updating item %q: %w", it.ID, err)
	}
	return nil
}

// Delete removes an item. Items referenced by a line item are kept and
// catalog.ErrInUse is returned.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return catalog.ErrInUse
		}
		return fmt.Errorf("deleting item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// GetByID returns one item.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*catalog.Item, error) {
	row := r.db.conn(ctx).QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}
	return it, nil
}

// GetBySlug returns the item with slug.
func (r *ItemRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Item, error) {
	row := r.db.conn(ctx).QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE slug = $1`, slug)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item by slug %q: %w", slug, err)
	}
	return it, nil
}

// List returns the items matching f ordered by name.
func (r *ItemRepository) List(ctx context.Context, f catalog.Filter) ([]catalog.Item, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if f.AvailableOnly {
		where = append(where, "available")
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// SetImageKey points an item at a stored picture.
func (r *ItemRepository) SetImageKey(ctx context.Context, id, key string) error {
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE items SET image_key = $2, updated_at = now() WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("setting image key of item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (*catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(
		&it.ID, &it.Name, &it.Size, &it.Price, &it.DiscountPrice, &it.Category, &it.Label,
		&it.Slug, &it.Available, &it.Description, &it.AdditionalInformation, &it.ImageKey,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}
