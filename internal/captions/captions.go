// Package captions maintains the legacy captions.json side-file that maps
// uncategorized photo filenames to captions. Photo records already carry
// the caption; the file is kept only for older readers of the upload dir.
package captions

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/alumni-connect/gallery-service/internal/blob"
)

// FileName is the side-file's name inside the uncategorized bucket.
const FileName = blob.CaptionsFile

// Store records the caption of an uncategorized photo.
type Store interface {
	Put(filename, caption string) error
}

// Noop disables the side-file.
type Noop struct{}

func (Noop) Put(string, string) error { return nil }

// File is the JSON side-file. The read-merge-write cycle is not atomic on
// disk, so all writers in this process go through mu and every write
// replaces the file by rename. Separate processes sharing the upload dir
// can still lose updates.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Put(filename, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	captions, err := f.read()
	if err != nil {
		return err
	}
	captions[filename] = caption

	return f.write(captions)
}

// All returns a snapshot of the side-file.
func (f *File) All() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.read()
}

// read treats a missing or unparsable file as empty, as the old writer did.
func (f *File) read() (map[string]string, error) {
	captions := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return captions, nil
		}
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	if err := json.Unmarshal(data, &captions); err != nil {
		slog.Warn("Ignoring unreadable captions file",
			slog.String("path", f.path),
			slog.String("error", err.Error()))
		return make(map[string]string), nil
	}

	return captions, nil
}

func (f *File) write(captions map[string]string) error {
	data, err := json.MarshalIndent(captions, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".captions-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp captions file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write captions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace captions file: %w", err)
	}

	return nil
}
