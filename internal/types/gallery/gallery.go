package gallery

import (
	"path"
	"time"
)

const (
	// UncategorizedDir holds photos uploaded without an album.
	UncategorizedDir = "allPhotos"
	// AlbumsDir holds one directory per album.
	AlbumsDir = "albums"
)

// PhotoRecord is one uploaded photo as stored in the record store
type PhotoRecord struct {
	ID         string    `json:"_id" db:"id"`
	Filename   string    `json:"filename" db:"filename"`
	Album      *string   `json:"album" db:"album"`
	Caption    string    `json:"caption" db:"caption"`
	Validated  bool      `json:"validated" db:"validated"`
	UploadedAt time.Time `json:"uploadedAt" db:"uploaded_at"`
}

// Photo is a PhotoRecord together with the public path it is served from
type Photo struct {
	PhotoRecord
	Src string `json:"src"`
}

// NewPhoto carries the fields a store needs to create a PhotoRecord.
// Stores assign the id and upload time and always start unvalidated.
type NewPhoto struct {
	Filename string
	Album    *string
	Caption  string
}

// PhotoFilter narrows photo listings. Nil fields do not filter.
type PhotoFilter struct {
	Validated *bool
	Album     *string
}

// AlbumGroup is one row of the album aggregation over photo records
type AlbumGroup struct {
	Name          string `json:"name"`
	Count         int    `json:"count"`
	CoverFilename string `json:"cover_filename"`
}

// AlbumSummary is the public view of an album
type AlbumSummary struct {
	AlbumName   string `json:"albumName"`
	TotalPhotos int    `json:"totalPhotos"`
	CoverImage  string `json:"coverImage"`
}

// Stats summarises the moderation queue for the admin dashboard
type Stats struct {
	Total     int `json:"total"`
	Validated int `json:"validated"`
	Pending   int `json:"pending"`
	Albums    int `json:"albums"`
}

// RelPath returns the slash separated location of a photo inside the
// upload root, e.g. "allPhotos/1700000000000.jpg".
func RelPath(album *string, filename string) string {
	if album != nil {
		return path.Join(AlbumsDir, *album, filename)
	}
	return path.Join(UncategorizedDir, filename)
}

// Src returns the public URL path of a photo.
func Src(album *string, filename string) string {
	return "/" + RelPath(album, filename)
}

// View attaches the derived src to a record.
func (p PhotoRecord) View() Photo {
	return Photo{PhotoRecord: p, Src: Src(p.Album, p.Filename)}
}

// AlbumName returns the album of the record or "" for the uncategorized bucket.
func (p PhotoRecord) AlbumName() string {
	if p.Album == nil {
		return ""
	}
	return *p.Album
}

// StringPtr returns nil for "" and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DeletePhotoRequest is the body of DELETE /gallery/photo
type DeletePhotoRequest struct {
	Filename string  `json:"filename" validate:"required"`
	Album    *string `json:"album"`
}

// ValidateBulkRequest is the body of POST /gallery/validateBulk
type ValidateBulkRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// PhotoFile is the photo returned by a single upload
type PhotoFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Src      string `json:"src"`
	Caption  string `json:"caption"`
}

type UploadSingleResponse struct {
	Message string    `json:"message"`
	File    PhotoFile `json:"file"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PhotosResponse struct {
	Photos []Photo `json:"photos"`
}

type AlbumsResponse struct {
	Albums []AlbumSummary `json:"albums"`
}

type AlbumPhotosResponse struct {
	Album  string  `json:"album"`
	Photos []Photo `json:"photos"`
}

type ValidateResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type ValidateBulkResponse struct {
	Message string   `json:"message"`
	IDs     []string `json:"ids"`
	Matched int64    `json:"matched"`
}

type DeleteCountResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}
