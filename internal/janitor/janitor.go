// Package janitor reconciles the blob store with the photo record store.
// Deleting unvalidated photos drops records only, and partial failures can
// leave either side behind; the janitor finds both kinds of drift.
package janitor

import (
	"context"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alumni-connect/gallery-service/internal/blob"
	"github.com/alumni-connect/gallery-service/internal/storage"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
)

// Report summarises one sweep
type Report struct {
	Blobs   int
	Records int
	// Orphans are blobs with no record
	Orphans []blob.Key
	// Missing are records whose blob is gone
	Missing []gallery.PhotoRecord
	Removed int
}

type Janitor struct {
	store         storage.Storage
	blobs         blob.Store
	removeOrphans bool
	minAge        time.Duration
	timeout       time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func New(store storage.Storage, blobs blob.Store, removeOrphans bool, minAge time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:         store,
		blobs:         blobs,
		removeOrphans: removeOrphans,
		minAge:        minAge,
		timeout:       30 * time.Minute,
		now:           time.Now,
		logger:        logger,
	}
}

// Sweep compares both stores once and, when configured, removes orphaned
// blobs old enough not to belong to an upload still in progress.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	var report Report

	records, err := j.store.ListPhotos(ctx, gallery.PhotoFilter{})
	if err != nil {
		return report, err
	}
	keys, err := j.blobs.List(ctx)
	if err != nil {
		return report, err
	}
	report.Records = len(records)
	report.Blobs = len(keys)

	recorded := make(map[string]bool, len(records))
	for _, rec := range records {
		recorded[gallery.RelPath(rec.Album, rec.Filename)] = true
	}
	stored := make(map[string]bool, len(keys))
	for _, key := range keys {
		stored[key.Path()] = true
	}

	for _, key := range keys {
		if recorded[key.Path()] || !j.oldEnough(key.Filename) {
			continue
		}
		report.Orphans = append(report.Orphans, key)
	}
	for _, rec := range records {
		if !stored[gallery.RelPath(rec.Album, rec.Filename)] {
			report.Missing = append(report.Missing, rec)
		}
	}

	for _, rec := range report.Missing {
		j.logger.Warn("Photo record has no blob",
			slog.String("id", rec.ID),
			slog.String("path", gallery.RelPath(rec.Album, rec.Filename)))
	}

	if !j.removeOrphans {
		return report, nil
	}

	for _, key := range report.Orphans {
		if err := j.blobs.Delete(ctx, key); err != nil {
			j.logger.Error("Failed to remove orphaned blob",
				slog.String("path", key.Path()),
				slog.String("error", err.Error()))
			continue
		}
		report.Removed++
	}

	return report, nil
}

// oldEnough reads the upload time from a generated filename. Names that do
// not carry one are treated as old.
func (j *Janitor) oldEnough(filename string) bool {
	stem := strings.TrimSuffix(filename, path.Ext(filename))
	ms, err := strconv.ParseInt(stem, 10, 64)
	if err != nil {
		return true
	}
	return j.now().Sub(time.UnixMilli(ms)) >= j.minAge
}

// Name identifies the job in scheduler logs
func (j *Janitor) Name() string {
	return "gallery-janitor"
}

// Run lets the janitor be scheduled as a cron job
func (j *Janitor) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	startTime := time.Now()
	report, err := j.Sweep(ctx)
	if err != nil {
		j.logger.Error("Gallery sweep failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))
		return
	}

	j.logger.Info("Completed gallery sweep",
		slog.Int("blobs", report.Blobs),
		slog.Int("records", report.Records),
		slog.Int("orphans", len(report.Orphans)),
		slog.Int("missing", len(report.Missing)),
		slog.Int("removed", report.Removed),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))
}
