// Package miniostore implements object.ObjectStorage with the MinIO client,
// for self-hosted S3-compatible deployments.
package miniostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"filegate/pkg/object"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config encapsulates the connection info for a MinIO server.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PathStyle bool
	// CreateBucket makes Init create the bucket when it does not exist.
	CreateBucket bool
}

// Storage satisfies object.ObjectStorage using minio-go.
type Storage struct {
	cl     *minio.Client
	bucket string
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint must be provided")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("minio: endpoint %q must be host[:port] without a scheme", c.Endpoint)
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("minio: credentials must be provided")
	}
	if c.Bucket == "" {
		return errors.New("minio: bucket must be provided")
	}
	return nil
}

// Init connects to the server and checks the bucket.
func (s *Storage) Init(ctx context.Context, param any) error {
	cfg, ok := param.(Config)
	if !ok {
		if p, ok := param.(*Config); ok && p != nil {
			cfg = *p
		} else {
			return fmt.Errorf("minio: unexpected config type %T", param)
		}
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	cl, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return fmt.Errorf("minio: new client: %w", err)
	}

	exists, err := cl.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("minio: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.CreateBucket {
			return fmt.Errorf("minio: bucket %s does not exist", cfg.Bucket)
		}
		if err := cl.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return fmt.Errorf("minio: create bucket %s: %w", cfg.Bucket, err)
		}
	}

	s.cl = cl
	s.bucket = cfg.Bucket
	return nil
}

// Close is a no-op; the client holds no long-lived resources.
func (s *Storage) Close(_ context.Context) error {
	return nil
}

// Put streams r into the bucket. size -1 lets minio buffer and pick a
// multipart strategy.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (object.Object, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, err
	}
	info, err := s.cl.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return object.Object{}, fmt.Errorf("minio: put %s: %w", key, mapError(err))
	}
	return object.Object{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

// Get stats the object first so a missing key fails before any body is
// handed out; GetObject itself is lazy.
func (s *Storage) Get(ctx context.Context, key string) (object.Object, io.ReadCloser, error) {
	meta, err := s.Stat(ctx, key)
	if err != nil {
		return object.Object{}, nil, err
	}
	obj, err := s.cl.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return object.Object{}, nil, mapError(err)
	}
	return meta, obj, nil
}

// Stat returns metadata only.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, err
	}
	info, err := s.cl.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return object.Object{}, mapError(err)
	}
	return object.Object{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Delete removes an object. Like S3, an absent key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.ensureClient(); err != nil {
		return err
	}
	if err := s.cl.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio: delete %s: %w", key, mapError(err))
	}
	return nil
}

func (s *Storage) ensureClient() error {
	if s.cl == nil {
		return errors.New("minio: client not initialized")
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.Code == "NotFound":
		return object.ErrNotFound
	case resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket":
		return object.ErrNotFound
	}
	return err
}

var _ object.ObjectStorage = (*Storage)(nil)
