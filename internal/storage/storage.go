package storage

import (
	"context"

	"github.com/alumni-connect/gallery-service/internal/types/gallery"
)

// Storage is the photo record store. It is the source of truth for which
// photos exist, independent of whether their bytes are still on disk.
type Storage interface {
	CreatePhoto(ctx context.Context, photo gallery.NewPhoto) (gallery.PhotoRecord, error)
	// CreatePhotos inserts all photos as one batch and returns how many were created.
	CreatePhotos(ctx context.Context, photos []gallery.NewPhoto) (int, error)
	// ListPhotos returns matching records newest upload first.
	ListPhotos(ctx context.Context, filter gallery.PhotoFilter) ([]gallery.PhotoRecord, error)
	// ListAlbums groups records by non-null album, ordered by album name.
	// The cover of each group is its earliest upload, ties broken by filename.
	ListAlbums(ctx context.Context) ([]gallery.AlbumGroup, error)
	// DeletePhoto removes the record with filename in album (nil album is
	// the uncategorized bucket). Deleting a missing record is not an error.
	DeletePhoto(ctx context.Context, filename string, album *string) (int64, error)
	// ValidatePhoto marks one record validated and reports whether it exists.
	ValidatePhoto(ctx context.Context, id string) (bool, error)
	// ValidatePhotos marks all listed records validated and returns how many matched.
	ValidatePhotos(ctx context.Context, ids []string) (int64, error)
	DeleteUnvalidated(ctx context.Context) (int64, error)
	DeleteAlbum(ctx context.Context, album string) (int64, error)
}
