package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alumni-connect/gallery-service/internal/types/gallery"
)

func album(s string) *string { return &s }

func TestMemory_ListPhotosNewestFirst(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.SetClock(func() time.Time { return at })
		if _, err := store.CreatePhoto(ctx, gallery.NewPhoto{Filename: name}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	photos, err := store.ListPhotos(ctx, gallery.PhotoFilter{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(photos) != 3 {
		t.Fatalf("Expected 3 photos, got %d", len(photos))
	}
	if photos[0].Filename != "c.jpg" || photos[2].Filename != "a.jpg" {
		t.Fatalf("Expected newest first, got %s..%s", photos[0].Filename, photos[2].Filename)
	}
	for _, p := range photos {
		if p.Validated {
			t.Fatalf("Expected %s to start unvalidated", p.Filename)
		}
	}
}

func TestMemory_ListAlbumsCoverIsEarliestUpload(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return base.Add(time.Hour) })
	store.CreatePhotos(ctx, []gallery.NewPhoto{
		{Filename: "200.jpg", Album: album("Reunion")},
		{Filename: "199.jpg", Album: album("Reunion")},
	})
	store.SetClock(func() time.Time { return base })
	store.CreatePhotos(ctx, []gallery.NewPhoto{
		{Filename: "300.jpg", Album: album("Reunion")},
		{Filename: "100.jpg", Album: album("Alpha")},
	})
	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "loose.jpg"})

	albums, err := store.ListAlbums(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(albums) != 2 {
		t.Fatalf("Expected 2 albums, got %d", len(albums))
	}
	if albums[0].Name != "Alpha" || albums[1].Name != "Reunion" {
		t.Fatalf("Expected albums sorted by name, got %v", albums)
	}
	if albums[1].Count != 3 {
		t.Fatalf("Expected 3 photos in Reunion, got %d", albums[1].Count)
	}
	if albums[1].CoverFilename != "300.jpg" {
		t.Fatalf("Expected earliest upload as cover, got %s", albums[1].CoverFilename)
	}
}

func TestMemory_DeletePhotoMatchesNamespace(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "1.jpg"})
	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "1.jpg", Album: album("Trip")})

	n, err := store.DeletePhoto(ctx, "1.jpg", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 deletion, got %d", n)
	}

	n, err = store.DeletePhoto(ctx, "1.jpg", nil)
	if err != nil || n != 0 {
		t.Fatalf("Expected idempotent delete, got n=%d err=%v", n, err)
	}

	left, _ := store.ListPhotos(ctx, gallery.PhotoFilter{})
	if len(left) != 1 || left[0].AlbumName() != "Trip" {
		t.Fatalf("Expected the album photo to survive, got %v", left)
	}
}

func TestMemory_ValidateAndPurge(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	a, _ := store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "a.jpg"})
	b, _ := store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "b.jpg"})
	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "c.jpg"})

	found, err := store.ValidatePhoto(ctx, a.ID)
	if err != nil || !found {
		t.Fatalf("Expected validate to find %s, got found=%v err=%v", a.ID, found, err)
	}
	found, _ = store.ValidatePhoto(ctx, "missing")
	if found {
		t.Fatal("Expected unknown id not to be found")
	}

	matched, _ := store.ValidatePhotos(ctx, []string{b.ID, b.ID, "missing"})
	if matched != 1 {
		t.Fatalf("Expected 1 match, got %d", matched)
	}

	deleted, _ := store.DeleteUnvalidated(ctx)
	if deleted != 1 {
		t.Fatalf("Expected 1 unvalidated deletion, got %d", deleted)
	}

	validated := true
	left, _ := store.ListPhotos(ctx, gallery.PhotoFilter{Validated: &validated})
	if len(left) != 2 {
		t.Fatalf("Expected 2 validated photos left, got %d", len(left))
	}
}
