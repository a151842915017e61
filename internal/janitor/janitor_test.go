package janitor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alumni-connect/gallery-service/internal/blob"
	"github.com/alumni-connect/gallery-service/internal/blob/fs"
	galleryService "github.com/alumni-connect/gallery-service/internal/services/gallery"
	"github.com/alumni-connect/gallery-service/internal/storage/memory"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/robfig/cron/v3"
)

var discard = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func putBlob(t *testing.T, store *fs.Store, key blob.Key) {
	t.Helper()
	if err := store.Put(context.Background(), key, strings.NewReader("x"), 1, "image/jpeg"); err != nil {
		t.Fatalf("Failed to put %s: %v", key.Path(), err)
	}
}

func setup(t *testing.T) (*memory.Memory, *fs.Store, string) {
	t.Helper()
	root := t.TempDir()
	blobs, err := fs.NewStore(root)
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}
	return memory.NewMemory(), blobs, root
}

func TestSweep_FindsBothKindsOfDrift(t *testing.T) {
	store, blobs, root := setup(t)
	ctx := context.Background()

	now := time.UnixMilli(1700000000000).Add(48 * time.Hour)
	old := "1700000000000.jpg"
	fresh := "1700172799000.jpg" // one second before now

	putBlob(t, blobs, blob.Key{Filename: "1700000000001.jpg"})
	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "1700000000001.jpg"})

	putBlob(t, blobs, blob.Key{Filename: old})
	putBlob(t, blobs, blob.Key{Album: gallery.StringPtr("Trip"), Filename: old})
	putBlob(t, blobs, blob.Key{Filename: fresh})

	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "1700000000002.jpg"})

	j := New(store, blobs, false, time.Hour, discard)
	j.now = func() time.Time { return now }

	report, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Blobs != 4 || report.Records != 2 {
		t.Fatalf("Unexpected totals %+v", report)
	}
	if len(report.Orphans) != 2 {
		t.Fatalf("Expected 2 orphans, got %+v", report.Orphans)
	}
	for _, key := range report.Orphans {
		if key.Filename != old {
			t.Fatalf("Fresh blob reported as orphan: %s", key.Path())
		}
	}
	if len(report.Missing) != 1 || report.Missing[0].Filename != "1700000000002.jpg" {
		t.Fatalf("Unexpected missing %+v", report.Missing)
	}
	if report.Removed != 0 {
		t.Fatalf("Expected nothing removed in report-only mode, got %d", report.Removed)
	}
	if _, err := os.Stat(filepath.Join(root, gallery.UncategorizedDir, old)); err != nil {
		t.Fatalf("Report-only sweep removed a blob: %v", err)
	}
}

func TestSweep_RemovesOrphans(t *testing.T) {
	store, blobs, root := setup(t)
	ctx := context.Background()

	putBlob(t, blobs, blob.Key{Filename: "orphan.jpg"})
	putBlob(t, blobs, blob.Key{Filename: "kept.jpg"})
	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "kept.jpg"})

	j := New(store, blobs, true, time.Hour, discard)

	report, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Removed != 1 {
		t.Fatalf("Expected 1 removed, got %d", report.Removed)
	}
	if _, err := os.Stat(filepath.Join(root, gallery.UncategorizedDir, "orphan.jpg")); !os.IsNotExist(err) {
		t.Fatalf("Expected orphan to be removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, gallery.UncategorizedDir, "kept.jpg")); err != nil {
		t.Fatalf("Recorded blob was removed: %v", err)
	}
}

func TestSweep_AfterDeleteUnvalidated(t *testing.T) {
	store, blobs, _ := setup(t)
	ctx := context.Background()

	putBlob(t, blobs, blob.Key{Filename: "pending.png"})
	store.CreatePhoto(ctx, gallery.NewPhoto{Filename: "pending.png"})
	store.DeleteUnvalidated(ctx)

	report, err := New(store, blobs, true, 0, discard).Sweep(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Removed != 1 {
		t.Fatalf("Expected the purged photo's blob to be reclaimed, got %+v", report)
	}
}

func TestSweep_ReclaimsAnyUploadedType(t *testing.T) {
	store, blobs, root := setup(t)
	ctx := context.Background()

	svc := galleryService.NewService(store, blobs, galleryService.Options{
		Logger: discard,
		Now:    func() time.Time { return time.Now().Add(-2 * time.Hour) },
	})

	var uploaded []string
	for _, name := range []string{"pic.webp", "scan.heic", "noext"} {
		photo, err := svc.UploadSingle(ctx, &galleryService.File{
			Name:        name,
			ContentType: "image/webp",
			Size:        1,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader("x")), nil
			},
		}, "", nil)
		if err != nil {
			t.Fatalf("Failed to upload %s: %v", name, err)
		}
		uploaded = append(uploaded, photo.Filename)
	}

	if _, err := svc.DeleteUnvalidated(ctx); err != nil {
		t.Fatalf("Failed to purge: %v", err)
	}

	report, err := New(store, blobs, true, time.Hour, discard).Sweep(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Removed != len(uploaded) {
		t.Fatalf("Expected %d orphans reclaimed, got %+v", len(uploaded), report)
	}
	for _, name := range uploaded {
		if _, err := os.Stat(filepath.Join(root, gallery.UncategorizedDir, name)); !os.IsNotExist(err) {
			t.Fatalf("Expected %s to be removed, got %v", name, err)
		}
	}
}

type countingJob struct {
	runs atomic.Int32
}

func (c *countingJob) Run() { c.runs.Add(1) }
func (c *countingJob) Name() string { return "counting" }

type panickingJob struct{}

func (panickingJob) Run() { panic("boom") }

func TestWrappers(t *testing.T) {
	job := &countingJob{}
	wrapped := cron.NewChain(NewLoggingWrapper(discard), NewPanicRecoveryWrapper(discard)).Then(job)

	wrapped.Run()
	if job.runs.Load() != 1 {
		t.Fatalf("Expected 1 run, got %d", job.runs.Load())
	}
	if jobName(wrapped) != "counting" {
		t.Fatalf("Expected wrapped job to keep its name, got %s", jobName(wrapped))
	}

	// must not panic
	NewPanicRecoveryWrapper(discard)(panickingJob{}).Run()
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(discard)
	if err := s.Register("not a schedule", &countingJob{}); err == nil {
		t.Fatal("Expected an error for an invalid schedule")
	}
	if err := s.Register("@every 48h", &countingJob{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}
