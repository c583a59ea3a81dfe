package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"academic-vault/internal/av"
	"academic-vault/internal/config"
)

// MinioStore stores objects in a MinIO (or other S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

var _ av.ObjectStore = (*MinioStore)(nil)

// NewMinioStore creates a client for the configured endpoint. The bucket is
// created by ValidateSetup when missing.
func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio storage requires endpoint to be set")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio storage requires bucket to be set")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, region: cfg.Region}, nil
}

// Put uploads size bytes from r.
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	info, err := s.client.PutObject(ctx, s.bucket, prefixed(s.prefix, key), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	if info.Size != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, info.Size)
	}
	return nil
}

// Get streams the object to w. A missing object surfaces on first read.
func (s *MinioStore) Get(ctx context.Context, key string, w io.Writer) error {
	obj, err := s.client.GetObject(ctx, s.bucket, prefixed(s.prefix, key), minio.GetObjectOptions{})
	if err != nil {
		return s.mapError(key, err)
	}
	defer obj.Close()

	if _, err := io.Copy(w, obj); err != nil {
		return s.mapError(key, err)
	}
	return nil
}

// Delete removes the objects. Missing keys are ignored by the server.
func (s *MinioStore) Delete(ctx context.Context, keys ...string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: prefixed(s.prefix, k)}
	}
	close(objects)

	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("deleting %s: %w", rerr.ObjectName, rerr.Err))
	}
	return errors.Join(errs...)
}

// ValidateSetup ensures the bucket exists, creating it when missing.
func (s *MinioStore) ValidateSetup(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) mapError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: object %s", av.ErrNotFound, key)
	}
	return fmt.Errorf("reading %s: %w", key, err)
}
