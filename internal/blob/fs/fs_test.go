package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alumni-connect/gallery-service/internal/blob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func put(t *testing.T, store *Store, key blob.Key, body string) {
	t.Helper()
	if err := store.Put(context.Background(), key, strings.NewReader(body), int64(len(body)), "image/jpeg"); err != nil {
		t.Fatalf("Put %s: %v", key.Path(), err)
	}
}

func TestNewStore_CreatesNamespaces(t *testing.T) {
	store := newTestStore(t)

	for _, dir := range []string{"allPhotos", "albums"} {
		info, err := os.Stat(filepath.Join(store.Root(), dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("Expected %s directory, got err=%v", dir, err)
		}
	}
}

func TestStore_PutOpenDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	album := "Reunion2024"
	key := blob.Key{Album: &album, Filename: "1.jpg"}

	put(t, store, key, "jpeg-bytes")

	if _, err := os.Stat(filepath.Join(store.Root(), "albums", "Reunion2024", "1.jpg")); err != nil {
		t.Fatalf("Expected album directory to be created: %v", err)
	}

	err := store.Put(ctx, key, strings.NewReader("other"), 5, "image/jpeg")
	if !errors.Is(err, blob.ErrExists) {
		t.Fatalf("Expected ErrExists on second put, got %v", err)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "jpeg-bytes" {
		t.Fatalf("Expected original bytes, got %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Expected deleting a missing blob to succeed, got %v", err)
	}

	if _, err := store.Open(ctx, key); !errors.Is(err, blob.ErrNotExist) {
		t.Fatalf("Expected ErrNotExist, got %v", err)
	}
}

func TestStore_RejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	album := ".."

	err := store.Put(ctx, blob.Key{Album: &album, Filename: "x.jpg"}, strings.NewReader("x"), 1, "image/jpeg")
	if err == nil {
		t.Fatal("Expected traversal album to be rejected")
	}
	err = store.Put(ctx, blob.Key{Filename: "../x.jpg"}, strings.NewReader("x"), 1, "image/jpeg")
	if err == nil {
		t.Fatal("Expected traversal filename to be rejected")
	}
}

func TestStore_DeleteAlbum(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	album := "Trip"
	other := "Other"

	put(t, store, blob.Key{Album: &album, Filename: "1.jpg"}, "a")
	put(t, store, blob.Key{Album: &album, Filename: "2.PNG"}, "b")
	put(t, store, blob.Key{Album: &other, Filename: "3.jpg"}, "c")
	os.WriteFile(filepath.Join(store.Root(), "albums", "Trip", "notes.txt"), []byte("n"), 0o644)

	removed, err := store.DeleteAlbum(ctx, album)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("Expected 2 images removed, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "albums", "Trip")); !os.IsNotExist(err) {
		t.Fatalf("Expected album directory to be gone, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "albums", "Other", "3.jpg")); err != nil {
		t.Fatalf("Expected other album untouched: %v", err)
	}

	removed, err = store.DeleteAlbum(ctx, "Missing")
	if err != nil || removed != 0 {
		t.Fatalf("Expected missing album to be a no-op, got removed=%d err=%v", removed, err)
	}
}

func TestStore_ListSkipsSideFiles(t *testing.T) {
	store := newTestStore(t)
	album := "Trip"

	put(t, store, blob.Key{Filename: "1.jpg"}, "a")
	put(t, store, blob.Key{Filename: "3.webp"}, "c")
	put(t, store, blob.Key{Filename: "4"}, "d")
	put(t, store, blob.Key{Album: &album, Filename: "2.heic"}, "b")
	os.WriteFile(filepath.Join(store.Root(), "allPhotos", "captions.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(store.Root(), "allPhotos", ".captions-123.json"), []byte("{}"), 0o644)

	keys, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(keys) != 4 {
		t.Fatalf("Expected 4 keys, got %d: %v", len(keys), keys)
	}

	paths := map[string]bool{}
	for _, k := range keys {
		paths[k.Path()] = true
	}
	for _, want := range []string{"allPhotos/1.jpg", "allPhotos/3.webp", "allPhotos/4", "albums/Trip/2.heic"} {
		if !paths[want] {
			t.Fatalf("Missing %s in %v", want, paths)
		}
	}
}
