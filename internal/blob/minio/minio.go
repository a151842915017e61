// Package minio keeps photo bytes in an S3 compatible bucket using the same
// key layout as the filesystem store.
package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/alumni-connect/gallery-service/internal/blob"
	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client     *minio.Client
	bucketName string
}

// NewStore creates a new bucket backed store
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &Store{
		client:     client,
		bucketName: cfg.MinIO.BucketName,
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return store, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *Store) Put(ctx context.Context, key blob.Key, r io.Reader, size int64, contentType string) error {
	objectKey := key.Path()

	_, err := s.client.StatObject(ctx, s.bucketName, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return blob.ErrExists
	}
	if !isNoSuchKey(err) {
		return fmt.Errorf("failed to stat %s: %w", objectKey, err)
	}

	_, err = s.client.PutObject(ctx, s.bucketName, objectKey, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	return nil
}

func (s *Store) Open(ctx context.Context, key blob.Key) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key.Path(), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	// GetObject is lazy, Stat surfaces a missing key
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, blob.ErrNotExist
		}
		return nil, err
	}

	return obj, nil
}

// Delete removes an object from storage
func (s *Store) Delete(ctx context.Context, key blob.Key) error {
	return s.client.RemoveObject(ctx, s.bucketName, key.Path(), minio.RemoveObjectOptions{})
}

func (s *Store) DeleteAlbum(ctx context.Context, album string) (int, error) {
	prefix := path.Join(gallery.AlbumsDir, album) + "/"

	objects, err := s.listObjects(ctx, prefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, object := range objects {
		if !blob.IsImageFile(object.Key) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", object.Key, err)
		}
		removed++
	}

	// buckets have no directories, drop whatever else shared the prefix
	for _, object := range objects {
		if blob.IsImageFile(object.Key) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", object.Key, err)
		}
	}

	return removed, nil
}

func (s *Store) List(ctx context.Context) ([]blob.Key, error) {
	var keys []blob.Key

	loose, err := s.listObjects(ctx, gallery.UncategorizedDir+"/")
	if err != nil {
		return nil, err
	}
	for _, object := range loose {
		name := strings.TrimPrefix(object.Key, gallery.UncategorizedDir+"/")
		if name == "" || strings.Contains(name, "/") || !blob.IsPhotoFile(name) {
			continue
		}
		keys = append(keys, blob.Key{Filename: name})
	}

	inAlbums, err := s.listObjects(ctx, gallery.AlbumsDir+"/")
	if err != nil {
		return nil, err
	}
	for _, object := range inAlbums {
		parts := strings.Split(strings.TrimPrefix(object.Key, gallery.AlbumsDir+"/"), "/")
		if len(parts) != 2 || !blob.IsPhotoFile(parts[1]) {
			continue
		}
		album := parts[0]
		keys = append(keys, blob.Key{Album: &album, Filename: parts[1]})
	}

	return keys, nil
}

func (s *Store) listObjects(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	// stops the lister goroutine when we return early on an error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []minio.ObjectInfo
	objectsCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objectsCh {
		if object.Err != nil {
			return nil, object.Err
		}
		objects = append(objects, object)
	}

	return objects, nil
}
