package catalog

import (
	"context"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageStore keeps encoded item pictures by key.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Service implements catalog management on top of a Repository and an
// ImageStore.
type Service struct {
	items      Repository
	images     ImageStore
	compressor *Compressor
}

// NewService creates a catalog Service.
func NewService(items Repository, images ImageStore, compressor *Compressor) *Service {
	return &Service{
		items:      items,
		images:     images,
		compressor: compressor,
	}
}

// Create validates and stores a new item. The image is attached separately
// with SetImage.
func (s *Service) Create(ctx context.Context, it *Item) error {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return err
	}
	it.ID = uuid.New().String()
	it.ImageKey = ""
	if err := s.items.Create(ctx, it); err != nil {
		return errors.Wrap(err, "create item")
	}
	return nil
}

// Update replaces the editable fields of an existing item. The stored image
// key is kept.
func (s *Service) Update(ctx context.Context, it *Item) error {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return err
	}
	current, err := s.items.GetByID(ctx, it.ID)
	if err != nil {
		return err
	}
	it.ImageKey = current.ImageKey
	it.CreatedAt = current.CreatedAt
	if err := s.items.Update(ctx, it); err != nil {
		return errors.Wrap(err, "update item")
	}
	return nil
}

// Get returns an item by id.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.items.GetByID(ctx, id)
}

// GetBySlug returns an item by its slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Item, error) {
	return s.items.GetBySlug(ctx, strings.ToLower(slug))
}

// List returns items matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	return s.items.List(ctx, f)
}

// Delete removes an item and, best effort, its stored pictures.
func (s *Service) Delete(ctx context.Context, id string) error {
	it, err := s.items.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}
	if it.ImageKey != "" {
		s.dropImages(ctx, it.ImageKey)
	}
	return nil
}

// SetImage compresses raw, stores the result and a thumbnail, and points the
// item at the new picture. A *DecodeError leaves the item unchanged.
func (s *Service) SetImage(ctx context.Context, id string, raw []byte, name string) (*Item, error) {
	it, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}

	processed, err := s.compressor.Process(ctx, raw, name)
	if err != nil {
		return nil, err
	}

	key := ImageKey(id, name)
	if err := s.images.Put(ctx, key, processed.Image.Data); err != nil {
		return nil, errors.Wrap(err, "store image")
	}
	if err := s.images.Put(ctx, ThumbnailKey(key), processed.Thumbnail.Data); err != nil {
		return nil, errors.Wrap(err, "store thumbnail")
	}
	if err := s.items.SetImageKey(ctx, id, key); err != nil {
		return nil, errors.Wrap(err, "set image key")
	}

	if it.ImageKey != "" && it.ImageKey != key {
		s.dropImages(ctx, it.ImageKey)
	}

	zctx.From(ctx).Info("Item image stored",
		zap.String("item_id", id),
		zap.String("key", key),
		zap.Int("raw_bytes", len(raw)),
		zap.Int("compressed_bytes", len(processed.Image.Data)),
	)

	it.ImageKey = key
	return it, nil
}

// Image returns the compressed picture of an item and its file name.
func (s *Service) Image(ctx context.Context, id string) ([]byte, string, error) {
	return s.loadImage(ctx, id, false)
}

// Thumbnail returns the thumbnail of an item and its file name.
func (s *Service) Thumbnail(ctx context.Context, id string) ([]byte, string, error) {
	return s.loadImage(ctx, id, true)
}

func (s *Service) loadImage(ctx context.Context, id string, thumb bool) ([]byte, string, error) {
	it, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if it.ImageKey == "" {
		return nil, "", ErrNoImage
	}
	key := it.ImageKey
	if thumb {
		key = ThumbnailKey(key)
	}
	data, err := s.images.Get(ctx, key)
	if err != nil {
		return nil, "", errors.Wrap(err, "load image")
	}
	return data, path.Base(it.ImageKey), nil
}

func (s *Service) dropImages(ctx context.Context, key string) {
	lg := zctx.From(ctx)
	for _, k := range []string{key, ThumbnailKey(key)} {
		if err := s.images.Delete(ctx, k); err != nil {
			lg.Warn("Failed to delete stale image", zap.String("key", k), zap.Error(err))
		}
	}
}

// ImageKey is the storage key of an item picture.
func ImageKey(itemID, name string) string {
	return itemID + "/" + name
}

// ThumbnailKey derives the thumbnail key from an image key.
func ThumbnailKey(key string) string {
	dir, file := path.Split(key)
	return dir + "thumb/" + file
}
