// Package bootstrap opens the stores selected in the config. Both the HTTP
// service and the janitor start from here.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alumni-connect/gallery-service/internal/blob"
	"github.com/alumni-connect/gallery-service/internal/blob/fs"
	minioStore "github.com/alumni-connect/gallery-service/internal/blob/minio"
	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/storage"
	"github.com/alumni-connect/gallery-service/internal/storage/memory"
	"github.com/alumni-connect/gallery-service/internal/storage/mongo"
	"github.com/alumni-connect/gallery-service/internal/storage/postgres"
	"github.com/go-redis/redis/v8"
)

// OpenStorage connects the photo record store. The returned func releases it.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.Storage, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := postgres.NewPostgres(cfg)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Connected to Postgres database")
		return pg, func() { pg.Close() }, nil

	case "mongo":
		m, err := mongo.NewMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Connected to MongoDB", slog.String("database", cfg.Mongo.Database))
		return m, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.Close(ctx)
		}, nil

	case "memory":
		slog.Warn("Using in-memory photo records, nothing survives a restart")
		return memory.NewMemory(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// OpenBlobStore opens the filesystem or bucket backed blob store.
func OpenBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Driver {
	case "fs":
		store, err := fs.NewStore(cfg.Upload.Dir)
		if err != nil {
			return nil, err
		}
		slog.Info("Storing photos on disk", slog.String("dir", store.Root()))
		return store, nil

	case "minio":
		store, err := minioStore.NewStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("Storing photos in MinIO", slog.String("bucket", cfg.MinIO.BucketName))
		return store, nil
	}

	return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
}

// OpenRedis returns nil when no address is configured.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Address == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", slog.String("address", cfg.Redis.Address))
	return client, nil
}
