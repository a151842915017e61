// Package fs keeps photo bytes on the local filesystem under the upload
// directory: <root>/allPhotos/<file> and <root>/albums/<album>/<file>.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alumni-connect/gallery-service/internal/blob"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
)

type Store struct {
	root string
}

// NewStore provisions the two namespace directories under root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{gallery.UncategorizedDir, gallery.AlbumsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) path(key blob.Key) (string, error) {
	if !isSegment(key.Filename) {
		return "", fmt.Errorf("invalid filename %q", key.Filename)
	}
	if key.Album != nil && !isSegment(*key.Album) {
		return "", fmt.Errorf("invalid album %q", *key.Album)
	}
	return filepath.Join(s.root, filepath.FromSlash(key.Path())), nil
}

func (s *Store) Put(_ context.Context, key blob.Key, r io.Reader, _ int64, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return blob.ErrExists
		}
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write %s: %w", key.Path(), err)
	}

	if err := f.Close(); err != nil {
		os.Remove(p)
		return err
	}

	return nil
}

func (s *Store) Open(_ context.Context, key blob.Key) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, blob.ErrNotExist
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, blob.ErrNotExist
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, blob.ErrNotExist
	}

	return f, nil
}

func (s *Store) Delete(_ context.Context, key blob.Key) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) DeleteAlbum(_ context.Context, album string) (int, error) {
	if !isSegment(album) {
		return 0, fmt.Errorf("invalid album %q", album)
	}
	dir := filepath.Join(s.root, gallery.AlbumsDir, album)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !blob.IsImageFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}

	if err := os.RemoveAll(dir); err != nil {
		return removed, err
	}

	return removed, nil
}

func (s *Store) List(_ context.Context) ([]blob.Key, error) {
	var keys []blob.Key

	loose, err := os.ReadDir(filepath.Join(s.root, gallery.UncategorizedDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, e := range loose {
		if e.Type().IsRegular() && blob.IsPhotoFile(e.Name()) {
			keys = append(keys, blob.Key{Filename: e.Name()})
		}
	}

	albums, err := os.ReadDir(filepath.Join(s.root, gallery.AlbumsDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, a := range albums {
		if !a.IsDir() {
			continue
		}
		name := a.Name()
		files, err := os.ReadDir(filepath.Join(s.root, gallery.AlbumsDir, name))
		if err != nil {
			return nil, err
		}
		for _, e := range files {
			if e.Type().IsRegular() && blob.IsPhotoFile(e.Name()) {
				keys = append(keys, blob.Key{Album: &name, Filename: e.Name()})
			}
		}
	}

	return keys, nil
}

// isSegment rejects anything that could escape its namespace directory.
func isSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
