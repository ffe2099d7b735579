package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/sqshop/internal/domain/catalog"
)

var _ catalog.ImageStore = (*ImageStore)(nil)

// ImageStore keeps item pictures in the item_images table.
type ImageStore struct {
	db *DB
}

// NewImageStore returns an ImageStore on db.
func NewImageStore(db *DB) *ImageStore {
	return &ImageStore{db: db}
}

// Put stores data under key, replacing any previous content.
func (s *ImageStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.db.conn(ctx).Exec(ctx, `INSERT INTO item_images (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, created_at = now()`, key, data)
	if err != nil {
		return fmt.Errorf("storing image %q: %w", key, err)
	}
	return nil
}

// Get returns the content stored under key or catalog.ErrNoImage.
func (s *ImageStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.conn(ctx).QueryRow(ctx, `SELECT data FROM item_images WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNoImage
		}
		return nil, fmt.Errorf("loading image %q: %w", key, err)
	}
	return data, nil
}

// Delete removes key. Missing keys are not an error.
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.conn(ctx).Exec(ctx, `DELETE FROM item_images WHERE key = $1`, key); err != nil {
		return fmt.Errorf("deleting image %q: %w", key, err)
	}
	return nil
}
