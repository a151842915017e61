package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alumni-connect/gallery-service/internal/storage"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/go-redis/redis/v8"
)

// CacheService wraps storage with Redis caching of the public gallery reads
type CacheService struct {
	storage storage.Storage
	redis   *redis.Client
}

// NewCacheService creates a new cache service
func NewCacheService(storage storage.Storage, redisClient *redis.Client) *CacheService {
	return &CacheService{
		storage: storage,
		redis:   redisClient,
	}
}

// Cache keys
const (
	KeyPrefix          = "gallery:"
	AlbumsKey          = "gallery:albums"
	ValidatedPhotosKey = "gallery:photos:validated"
)

// Cache durations
const (
	AlbumsCacheDuration = 5 * time.Minute
	PhotosCacheDuration = 1 * time.Minute
)

func (c *CacheService) get(ctx context.Context, key string, dst interface{}) bool {
	cached, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(cached), dst) == nil
}

func (c *CacheService) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Warn("Failed to cache", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Invalidate clears every cached gallery read. Called after each write.
func (c *CacheService) Invalidate(ctx context.Context) {
	if err := c.redis.Del(ctx, AlbumsKey, ValidatedPhotosKey).Err(); err != nil {
		slog.Warn("Failed to invalidate gallery cache", slog.String("error", err.Error()))
	}
}

// ListAlbums returns cached album groups or aggregates them from the store
func (c *CacheService) ListAlbums(ctx context.Context) ([]gallery.AlbumGroup, error) {
	var albums []gallery.AlbumGroup
	if c.get(ctx, AlbumsKey, &albums) {
		return albums, nil
	}

	albums, err := c.storage.ListAlbums(ctx)
	if err != nil {
		return nil, err
	}

	c.set(ctx, AlbumsKey, albums, AlbumsCacheDuration)
	return albums, nil
}

// ListPhotos caches only the public listing of validated photos
func (c *CacheService) ListPhotos(ctx context.Context, filter gallery.PhotoFilter) ([]gallery.PhotoRecord, error) {
	public := filter.Album == nil && filter.Validated != nil && *filter.Validated
	if !public {
		return c.storage.ListPhotos(ctx, filter)
	}

	var photos []gallery.PhotoRecord
	if c.get(ctx, ValidatedPhotosKey, &photos) {
		return photos, nil
	}

	photos, err := c.storage.ListPhotos(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.set(ctx, ValidatedPhotosKey, photos, PhotosCacheDuration)
	return photos, nil
}

// Write methods pass through to storage and invalidate the cache

func (c *CacheService) CreatePhoto(ctx context.Context, photo gallery.NewPhoto) (gallery.PhotoRecord, error) {
	rec, err := c.storage.CreatePhoto(ctx, photo)
	if err != nil {
		return rec, err
	}
	c.Invalidate(ctx)
	return rec, nil
}

func (c *CacheService) CreatePhotos(ctx context.Context, photos []gallery.NewPhoto) (int, error) {
	n, err := c.storage.CreatePhotos(ctx, photos)
	if err != nil {
		return n, err
	}
	c.Invalidate(ctx)
	return n, nil
}

func (c *CacheService) DeletePhoto(ctx context.Context, filename string, album *string) (int64, error) {
	n, err := c.storage.DeletePhoto(ctx, filename, album)
	if err != nil {
		return n, err
	}
	c.Invalidate(ctx)
	return n, nil
}

func (c *CacheService) ValidatePhoto(ctx context.Context, id string) (bool, error) {
	found, err := c.storage.ValidatePhoto(ctx, id)
	if err != nil {
		return found, err
	}
	c.Invalidate(ctx)
	return found, nil
}

func (c *CacheService) ValidatePhotos(ctx context.Context, ids []string) (int64, error) {
	n, err := c.storage.ValidatePhotos(ctx, ids)
	if err != nil {
		return n, err
	}
	c.Invalidate(ctx)
	return n, nil
}

func (c *CacheService) DeleteUnvalidated(ctx context.Context) (int64, error) {
	n, err := c.storage.DeleteUnvalidated(ctx)
	if err != nil {
		return n, err
	}
	c.Invalidate(ctx)
	return n, nil
}

func (c *CacheService) DeleteAlbum(ctx context.Context, album string) (int64, error) {
	n, err := c.storage.DeleteAlbum(ctx, album)
	if err != nil {
		return n, err
	}
	c.Invalidate(ctx)
	return n, nil
}
