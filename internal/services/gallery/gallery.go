package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alumni-connect/gallery-service/internal/blob"
	"github.com/alumni-connect/gallery-service/internal/captions"
	"github.com/alumni-connect/gallery-service/internal/events"
	"github.com/alumni-connect/gallery-service/internal/storage"
	galleryTypes "github.com/alumni-connect/gallery-service/internal/types/gallery"
)

// maxNameAttempts bounds how often an upload retries after a filename
// collision with a blob written by another process.
const maxNameAttempts = 5

// File is one uploaded image as received at the boundary
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type Options struct {
	// MaxFileSize rejects larger files when positive
	MaxFileSize int64
	Captions    captions.Store
	Publisher   events.Publisher
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service coordinates the blob store and the photo record store so that
// every upload and delete touches both. Blobs are written before records
// and deleted before records; nothing compensates if the second step fails.
type Service struct {
	store       storage.Storage
	blobs       blob.Store
	captions    captions.Store
	publisher   events.Publisher
	names       *NameGenerator
	maxFileSize int64
	logger      *slog.Logger
}

// NewService creates a new gallery service instance
func NewService(store storage.Storage, blobs blob.Store, opts Options) *Service {
	s := &Service{
		store:       store,
		blobs:       blobs,
		captions:    opts.Captions,
		publisher:   opts.Publisher,
		names:       NewNameGenerator(opts.Now),
		maxFileSize: opts.MaxFileSize,
		logger:      opts.Logger,
	}
	if s.captions == nil {
		s.captions = captions.Noop{}
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) checkFile(field string, f *File) error {
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return invalid(field, "Only images allowed")
	}
	if s.maxFileSize > 0 && f.Size > s.maxFileSize {
		return invalid(field, fmt.Sprintf("File %s exceeds the %d byte limit", f.Name, s.maxFileSize))
	}
	return nil
}

// writeBlob stores f under a freshly generated filename and returns it.
func (s *Service) writeBlob(ctx context.Context, album *string, f *File) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		key := blob.Key{Album: album, Filename: s.names.Next(f.Name)}

		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open upload: %w", err)
		}
		err = s.blobs.Put(ctx, key, rc, f.Size, f.ContentType)
		rc.Close()

		if errors.Is(err, blob.ErrExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return key.Filename, nil
	}
	return "", fmt.Errorf("no free filename after %d attempts", maxNameAttempts)
}

// UploadSingle stores one photo in the uncategorized bucket, or in album
// when one is given, and records it as pending moderation.
func (s *Service) UploadSingle(ctx context.Context, f *File, caption string, album *string) (galleryTypes.Photo, error) {
	if f == nil {
		return galleryTypes.Photo{}, invalid("photo", "No file uploaded.")
	}
	if err := s.checkFile("photo", f); err != nil {
		return galleryTypes.Photo{}, err
	}

	if album != nil {
		name := strings.TrimSpace(*album)
		if name == "" {
			album = nil
		} else {
			if err := checkAlbumName(name); err != nil {
				return galleryTypes.Photo{}, err
			}
			album = &name
		}
	}

	filename, err := s.writeBlob(ctx, album, f)
	if err != nil {
		return galleryTypes.Photo{}, storageErr("write blob", err)
	}

	if album == nil {
		if err := s.captions.Put(filename, caption); err != nil {
			s.logger.Warn("Failed to update captions file",
				slog.String("filename", filename),
				slog.String("error", err.Error()))
		}
	}

	rec, err := s.store.CreatePhoto(ctx, galleryTypes.NewPhoto{
		Filename: filename,
		Album:    album,
		Caption:  caption,
	})
	if err != nil {
		s.logger.Error("Photo record not created, blob left on disk",
			slog.String("path", galleryTypes.RelPath(album, filename)),
			slog.String("error", err.Error()))
		return galleryTypes.Photo{}, storageErr("create photo", err)
	}

	photo := rec.View()
	s.logger.Info("Photo uploaded",
		slog.String("id", photo.ID),
		slog.String("src", photo.Src))
	s.publisher.PublishPhotoUploaded(photo)

	return photo, nil
}

// UploadAlbum stores every file under the album and records them in one
// batch. It returns the number of records created.
func (s *Service) UploadAlbum(ctx context.Context, albumName string, files []*File) (int, error) {
	albumName = strings.TrimSpace(albumName)
	if albumName == "" {
		return 0, invalid("album", "Album required.")
	}
	if err := checkAlbumName(albumName); err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, invalid("photos", "No files.")
	}
	for _, f := range files {
		if f == nil {
			return 0, invalid("photos", "No files.")
		}
		if err := s.checkFile("photos", f); err != nil {
			return 0, err
		}
	}

	album := &albumName
	batch := make([]galleryTypes.NewPhoto, 0, len(files))
	for _, f := range files {
		filename, err := s.writeBlob(ctx, album, f)
		if err != nil {
			s.logger.Error("Album upload aborted",
				slog.String("album", albumName),
				slog.Int("written", len(batch)),
				slog.String("error", err.Error()))
			return 0, storageErr("write blob", err)
		}
		batch = append(batch, galleryTypes.NewPhoto{Filename: filename, Album: album})
	}

	created, err := s.store.CreatePhotos(ctx, batch)
	if err != nil {
		s.logger.Error("Album records not created, blobs left on disk",
			slog.String("album", albumName),
			slog.Int("blobs", len(batch)),
			slog.String("error", err.Error()))
		return 0, storageErr("create photos", err)
	}

	s.logger.Info("Album uploaded", slog.String("album", albumName), slog.Int("count", created))
	s.publisher.PublishAlbumUploaded(albumName, created)

	return created, nil
}

// ListPhotos returns photos newest first, optionally only those with the
// given validation state.
func (s *Service) ListPhotos(ctx context.Context, validated *bool) ([]galleryTypes.Photo, error) {
	recs, err := s.store.ListPhotos(ctx, galleryTypes.PhotoFilter{Validated: validated})
	if err != nil {
		return nil, storageErr("list photos", err)
	}
	return views(recs), nil
}

// ListAlbums returns one summary per album, sorted by name.
func (s *Service) ListAlbums(ctx context.Context) ([]galleryTypes.AlbumSummary, error) {
	groups, err := s.store.ListAlbums(ctx)
	if err != nil {
		return nil, storageErr("list albums", err)
	}

	albums := make([]galleryTypes.AlbumSummary, 0, len(groups))
	for _, g := range groups {
		name := g.Name
		albums = append(albums, galleryTypes.AlbumSummary{
			AlbumName:   name,
			TotalPhotos: g.Count,
			CoverImage:  galleryTypes.Src(&name, g.CoverFilename),
		})
	}
	return albums, nil
}

// ListAlbumPhotos returns the album's photos newest first. An unknown
// album yields an empty list.
func (s *Service) ListAlbumPhotos(ctx context.Context, albumName string) ([]galleryTypes.Photo, error) {
	if strings.TrimSpace(albumName) == "" {
		return nil, invalid("album", "Album required.")
	}

	recs, err := s.store.ListPhotos(ctx, galleryTypes.PhotoFilter{Album: &albumName})
	if err != nil {
		return nil, storageErr("list album photos", err)
	}
	return views(recs), nil
}

// DeletePhoto removes the blob, if still present, and the record. Deleting
// an already deleted photo succeeds.
func (s *Service) DeletePhoto(ctx context.Context, filename string, album *string) error {
	if filename == "" {
		return invalid("filename", "Filename required.")
	}
	if !isPathSegment(filename) {
		return invalid("filename", "Invalid filename.")
	}
	if album != nil && *album == "" {
		album = nil
	}
	if album != nil {
		if err := checkAlbumName(*album); err != nil {
			return err
		}
	}

	if err := s.blobs.Delete(ctx, blob.Key{Album: album, Filename: filename}); err != nil {
		return storageErr("delete blob", err)
	}

	deleted, err := s.store.DeletePhoto(ctx, filename, album)
	if err != nil {
		s.logger.Error("Blob deleted but photo record remains",
			slog.String("path", galleryTypes.RelPath(album, filename)),
			slog.String("error", err.Error()))
		return storageErr("delete photo", err)
	}

	s.logger.Info("Photo deleted",
		slog.String("path", galleryTypes.RelPath(album, filename)),
		slog.Int64("records", deleted))
	s.publisher.PublishPhotoDeleted(filename, album)

	return nil
}

// ValidatePhoto approves one photo for public display.
func (s *Service) ValidatePhoto(ctx context.Context, id string) error {
	if id == "" {
		return invalid("id", "ID required.")
	}

	found, err := s.store.ValidatePhoto(ctx, id)
	if err != nil {
		return storageErr("validate photo", err)
	}
	if !found {
		return ErrNotFound
	}

	s.publisher.PublishPhotosValidated([]string{id})
	return nil
}

// ValidateBulk approves every listed photo in one batch and returns how
// many records matched.
func (s *Service) ValidateBulk(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, invalid("ids", "No IDs provided.")
	}

	matched, err := s.store.ValidatePhotos(ctx, ids)
	if err != nil {
		return 0, storageErr("validate photos", err)
	}

	s.logger.Info("Photos validated", slog.Int("requested", len(ids)), slog.Int64("matched", matched))
	s.publisher.PublishPhotosValidated(ids)

	return matched, nil
}

// DeleteUnvalidated drops every pending record. Their blobs stay on disk
// until the janitor sweeps them.
func (s *Service) DeleteUnvalidated(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteUnvalidated(ctx)
	if err != nil {
		return 0, storageErr("delete unvalidated", err)
	}

	s.logger.Info("Unvalidated photos deleted", slog.Int64("records", deleted))
	s.publisher.PublishPhotosPurged(deleted)

	return deleted, nil
}

// DeleteAlbum removes the album's images and directory, then its records,
// and returns the number of records deleted.
func (s *Service) DeleteAlbum(ctx context.Context, albumName string) (int64, error) {
	albumName = strings.TrimSpace(albumName)
	if albumName == "" {
		return 0, invalid("album", "Album required.")
	}
	if err := checkAlbumName(albumName); err != nil {
		return 0, err
	}

	files, err := s.blobs.DeleteAlbum(ctx, albumName)
	if err != nil {
		return 0, storageErr("delete album blobs", err)
	}

	deleted, err := s.store.DeleteAlbum(ctx, albumName)
	if err != nil {
		s.logger.Error("Album files deleted but records remain",
			slog.String("album", albumName),
			slog.String("error", err.Error()))
		return 0, storageErr("delete album", err)
	}

	s.logger.Info("Album deleted",
		slog.String("album", albumName),
		slog.Int("files", files),
		slog.Int64("records", deleted))
	s.publisher.PublishAlbumDeleted(albumName, deleted)

	return deleted, nil
}

// Stats counts photos per moderation state and albums.
func (s *Service) Stats(ctx context.Context) (galleryTypes.Stats, error) {
	recs, err := s.store.ListPhotos(ctx, galleryTypes.PhotoFilter{})
	if err != nil {
		return galleryTypes.Stats{}, storageErr("list photos", err)
	}
	albums, err := s.store.ListAlbums(ctx)
	if err != nil {
		return galleryTypes.Stats{}, storageErr("list albums", err)
	}

	stats := galleryTypes.Stats{Total: len(recs), Albums: len(albums)}
	for _, r := range recs {
		if r.Validated {
			stats.Validated++
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}

// OpenPhoto streams the stored bytes of a photo.
func (s *Service) OpenPhoto(ctx context.Context, filename string, album *string) (io.ReadCloser, error) {
	if !isPathSegment(filename) || (album != nil && !isPathSegment(*album)) {
		return nil, ErrNotFound
	}

	rc, err := s.blobs.Open(ctx, blob.Key{Album: album, Filename: filename})
	if errors.Is(err, blob.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("open blob", err)
	}
	return rc, nil
}

func views(recs []galleryTypes.PhotoRecord) []galleryTypes.Photo {
	photos := make([]galleryTypes.Photo, 0, len(recs))
	for _, r := range recs {
		photos = append(photos, r.View())
	}
	return photos
}

// checkAlbumName allows any name that stays a single directory.
func checkAlbumName(name string) error {
	if !isPathSegment(name) {
		return invalid("album", "Album name may not contain slashes or be . or ..")
	}
	return nil
}

func isPathSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
