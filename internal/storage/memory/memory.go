// Package memory is an in-process photo record store for local
// development and tests. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/google/uuid"
)

type entry struct {
	rec gallery.PhotoRecord
	seq int64
}

type Memory struct {
	mu     sync.RWMutex
	photos map[string]*entry
	seq    int64
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		photos: make(map[string]*entry),
		now:    time.Now,
	}
}

// SetClock replaces the clock used to stamp uploads.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) insert(photo gallery.NewPhoto, at time.Time) gallery.PhotoRecord {
	m.seq++
	rec := gallery.PhotoRecord{
		ID:         uuid.New().String(),
		Filename:   photo.Filename,
		Album:      copyString(photo.Album),
		Caption:    photo.Caption,
		UploadedAt: at,
	}
	m.photos[rec.ID] = &entry{rec: rec, seq: m.seq}
	return rec
}

func (m *Memory) CreatePhoto(_ context.Context, photo gallery.NewPhoto) (gallery.PhotoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insert(photo, m.now().UTC()), nil
}

func (m *Memory) CreatePhotos(_ context.Context, photos []gallery.NewPhoto) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now().UTC()
	for _, photo := range photos {
		m.insert(photo, at)
	}
	return len(photos), nil
}

// sorted returns matching entries newest first, insertion order breaking ties.
func (m *Memory) sorted(match func(gallery.PhotoRecord) bool) []*entry {
	out := make([]*entry, 0, len(m.photos))
	for _, e := range m.photos {
		if match(e.rec) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].rec.UploadedAt.Equal(out[j].rec.UploadedAt) {
			return out[i].rec.UploadedAt.After(out[j].rec.UploadedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

func (m *Memory) ListPhotos(_ context.Context, filter gallery.PhotoFilter) ([]gallery.PhotoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.sorted(func(rec gallery.PhotoRecord) bool {
		if filter.Validated != nil && rec.Validated != *filter.Validated {
			return false
		}
		if filter.Album != nil && (rec.Album == nil || *rec.Album != *filter.Album) {
			return false
		}
		return true
	})

	photos := make([]gallery.PhotoRecord, 0, len(entries))
	for _, e := range entries {
		rec := e.rec
		rec.Album = copyString(rec.Album)
		photos = append(photos, rec)
	}
	return photos, nil
}

func (m *Memory) ListAlbums(_ context.Context) ([]gallery.AlbumGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make(map[string]*gallery.AlbumGroup)
	covers := make(map[string]gallery.PhotoRecord)
	for _, e := range m.photos {
		if e.rec.Album == nil {
			continue
		}
		name := *e.rec.Album
		g, ok := groups[name]
		if !ok {
			g = &gallery.AlbumGroup{Name: name}
			groups[name] = g
		}
		g.Count++

		cover, ok := covers[name]
		if !ok || coversBefore(e.rec, cover) {
			covers[name] = e.rec
		}
	}

	albums := make([]gallery.AlbumGroup, 0, len(groups))
	for name, g := range groups {
		g.CoverFilename = covers[name].Filename
		albums = append(albums, *g)
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].Name < albums[j].Name })

	return albums, nil
}

func coversBefore(a, b gallery.PhotoRecord) bool {
	if !a.UploadedAt.Equal(b.UploadedAt) {
		return a.UploadedAt.Before(b.UploadedAt)
	}
	return a.Filename < b.Filename
}

func (m *Memory) DeletePhoto(_ context.Context, filename string, album *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, e := range m.photos {
		if e.rec.Filename == filename && sameAlbum(e.rec.Album, album) {
			delete(m.photos, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) ValidatePhoto(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.photos[id]
	if !ok {
		return false, nil
	}
	e.rec.Validated = true
	return true, nil
}

func (m *Memory) ValidatePhotos(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched int64
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := m.photos[id]; ok {
			e.rec.Validated = true
			matched++
		}
	}
	return matched, nil
}

func (m *Memory) DeleteUnvalidated(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, e := range m.photos {
		if !e.rec.Validated {
			delete(m.photos, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) DeleteAlbum(_ context.Context, album string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, e := range m.photos {
		if e.rec.Album != nil && *e.rec.Album == album {
			delete(m.photos, id)
			deleted++
		}
	}
	return deleted, nil
}

func sameAlbum(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
