// Package blob stores photo bytes under two namespaces: the flat
// uncategorized bucket and one directory per album.
package blob

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/alumni-connect/gallery-service/internal/types/gallery"
)

// CaptionsFile is the legacy caption side-file kept next to the
// uncategorized photos. It is not a photo.
const CaptionsFile = "captions.json"

var (
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blob already exists")
	// ErrNotExist is returned by Open for a missing blob.
	ErrNotExist = errors.New("blob does not exist")
)

// Key addresses one photo. A nil Album is the uncategorized bucket.
type Key struct {
	Album    *string
	Filename string
}

func (k Key) Path() string {
	return gallery.RelPath(k.Album, k.Filename)
}

type Store interface {
	// Put writes a new blob and never overwrites an existing one.
	Put(ctx context.Context, key Key, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key Key) (io.ReadCloser, error)
	// Delete removes a blob. A missing blob is not an error.
	Delete(ctx context.Context, key Key) error
	// DeleteAlbum removes every image in the album and then the album
	// itself, returning the number of images removed.
	DeleteAlbum(ctx context.Context, album string) (int, error)
	// List returns the key of every stored photo, whatever its extension.
	List(ctx context.Context) ([]Key, error)
}

var imageExt = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|bmp|svg)$`)

// IsImageFile reports whether name carries one of the image extensions
// the gallery cleans up.
func IsImageFile(name string) bool {
	return imageExt.MatchString(name)
}

// IsPhotoFile reports whether a stored file is a photo rather than the
// caption side-file or a hidden temp file.
func IsPhotoFile(name string) bool {
	return name != "" && name != CaptionsFile && !strings.HasPrefix(name, ".")
}
