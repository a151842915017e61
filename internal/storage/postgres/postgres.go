package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/lib/pq"
)

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	slog.Info("Connected to Postgres database", slog.String("dbname", cfg.PGSQL.DBName))

	pg := &Postgres{Db: db}
	if err := pg.CreateTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS gallery_photos (
			id SERIAL PRIMARY KEY,
			filename TEXT NOT NULL,
			album TEXT,
			caption TEXT NOT NULL DEFAULT '',
			validated BOOLEAN NOT NULL DEFAULT FALSE,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS gallery_photos_namespace_filename
			ON gallery_photos (COALESCE(album, ''), filename);`,
		`CREATE INDEX IF NOT EXISTS gallery_photos_album ON gallery_photos (album) WHERE album IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS gallery_photos_validated ON gallery_photos (validated, uploaded_at DESC);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) Close() error {
	return p.Db.Close()
}

func (p *Postgres) CreatePhoto(ctx context.Context, photo gallery.NewPhoto) (gallery.PhotoRecord, error) {
	query := `
	INSERT INTO gallery_photos (filename, album, caption)
	VALUES ($1, $2, $3)
	RETURNING id, uploaded_at
	`

	var id int64
	rec := gallery.PhotoRecord{
		Filename: photo.Filename,
		Album:    photo.Album,
		Caption:  photo.Caption,
	}

	err := p.Db.QueryRowContext(ctx, query, photo.Filename, nullString(photo.Album), photo.Caption).Scan(&id, &rec.UploadedAt)
	if err != nil {
		return gallery.PhotoRecord{}, err
	}
	rec.ID = strconv.FormatInt(id, 10)

	return rec, nil
}

// CreatePhotos streams the batch through COPY inside one transaction so a
// failure leaves no partial album behind.
func (p *Postgres) CreatePhotos(ctx context.Context, photos []gallery.NewPhoto) (int, error) {
	if len(photos) == 0 {
		return 0, nil
	}

	tx, err := p.Db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("gallery_photos", "filename", "album", "caption"))
	if err != nil {
		return 0, err
	}

	for _, photo := range photos {
		if _, err := stmt.ExecContext(ctx, photo.Filename, nullString(photo.Album), photo.Caption); err != nil {
			stmt.Close()
			return 0, err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, err
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(photos), nil
}

func (p *Postgres) ListPhotos(ctx context.Context, filter gallery.PhotoFilter) ([]gallery.PhotoRecord, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Validated != nil {
		args = append(args, *filter.Validated)
		conditions = append(conditions, fmt.Sprintf("validated = $%d", len(args)))
	}
	if filter.Album != nil {
		args = append(args, *filter.Album)
		conditions = append(conditions, fmt.Sprintf("album = $%d", len(args)))
	}

	query := `SELECT id, filename, album, caption, validated, uploaded_at FROM gallery_photos`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY uploaded_at DESC, id DESC"

	rows, err := p.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []gallery.PhotoRecord{}
	for rows.Next() {
		var (
			id    int64
			album sql.NullString
			rec   gallery.PhotoRecord
		)
		if err := rows.Scan(&id, &rec.Filename, &album, &rec.Caption, &rec.Validated, &rec.UploadedAt); err != nil {
			return nil, err
		}
		rec.ID = strconv.FormatInt(id, 10)
		if album.Valid {
			rec.Album = &album.String
		}
		photos = append(photos, rec)
	}

	return photos, rows.Err()
}

func (p *Postgres) ListAlbums(ctx context.Context) ([]gallery.AlbumGroup, error) {
	query := `
	SELECT album, COUNT(*), (ARRAY_AGG(filename ORDER BY uploaded_at ASC, filename ASC))[1]
	FROM gallery_photos
	WHERE album IS NOT NULL
	GROUP BY album
	ORDER BY album
	`

	rows, err := p.Db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	albums := []gallery.AlbumGroup{}
	for rows.Next() {
		var a gallery.AlbumGroup
		if err := rows.Scan(&a.Name, &a.Count, &a.CoverFilename); err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}

	return albums, rows.Err()
}

func (p *Postgres) DeletePhoto(ctx context.Context, filename string, album *string) (int64, error) {
	query := `DELETE FROM gallery_photos WHERE filename = $1 AND album IS NOT DISTINCT FROM $2`

	result, err := p.Db.ExecContext(ctx, query, filename, nullString(album))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (p *Postgres) ValidatePhoto(ctx context.Context, id string) (bool, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		// not an id this store could have issued
		return false, nil
	}

	result, err := p.Db.ExecContext(ctx, `UPDATE gallery_photos SET validated = TRUE WHERE id = $1`, numericID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (p *Postgres) ValidatePhotos(ctx context.Context, ids []string) (int64, error) {
	numericIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			numericIDs = append(numericIDs, n)
		}
	}
	if len(numericIDs) == 0 {
		return 0, nil
	}

	result, err := p.Db.ExecContext(ctx, `UPDATE gallery_photos SET validated = TRUE WHERE id = ANY($1)`, pq.Array(numericIDs))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (p *Postgres) DeleteUnvalidated(ctx context.Context) (int64, error) {
	result, err := p.Db.ExecContext(ctx, `DELETE FROM gallery_photos WHERE validated = FALSE`)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (p *Postgres) DeleteAlbum(ctx context.Context, album string) (int64, error) {
	result, err := p.Db.ExecContext(ctx, `DELETE FROM gallery_photos WHERE album = $1`, album)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
