package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vk/dispatchgrid/internal/ctxlog"
)

// Config holds the connection settings for a MinIO (or any S3) endpoint.
type Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Secure          bool
}

// MinIO implements Store on top of minio-go.
type MinIO struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinIO creates a client for cfg. No request is made until the first call.
func NewMinIO(cfg Config) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("object store endpoint must not be empty")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket must not be empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for '%s': %w", cfg.Endpoint, err)
	}

	return &MinIO{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Bucket returns the bucket this store is bound to.
func (m *MinIO) Bucket() string {
	return m.bucket
}

// EnsureBucket implements Store.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket '%s': %w", m.bucket, err)
	}
	if exists {
		return nil
	}

	ctxlog.FromContext(ctx).Info("🪣 Creating bucket", "bucket", m.bucket)
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("failed to create bucket '%s': %w", m.bucket, err)
	}
	return nil
}

// Put implements Store.
func (m *MinIO) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put '%s': %w", key, err)
	}
	return nil
}

// PutIfAbsent implements Store with an If-None-Match: * request.
func (m *MinIO) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	opts.SetMatchETagExcept("*")
	return m.putConditional(ctx, key, data, opts)
}

// PutIfMatch implements Store with an If-Match request.
func (m *MinIO) PutIfMatch(ctx context.Context, key string, data []byte, contentType, etag string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	opts.SetMatchETag(etag)
	return m.putConditional(ctx, key, data, opts)
}

func (m *MinIO) putConditional(ctx context.Context, key string, data []byte, opts minio.PutObjectOptions) error {
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return m.wrap("put", key, err)
	}
	return nil
}

// Get implements Store.
func (m *MinIO) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrap("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.wrap("read", key, err)
	}
	return data, nil
}

// Stat implements Store.
func (m *MinIO) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, m.wrap("stat", key, err)
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// List implements Store.
func (m *MinIO) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list '%s': %w", prefix, obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Remove implements Store.
func (m *MinIO) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return m.wrap("remove", key, err)
	}
	return nil
}

// wrap maps missing objects to ErrNotFound and lost conditional writes to
// ErrPreconditionFailed.
func (m *MinIO) wrap(op, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%s '%s': %w", op, key, ErrNotFound)
	case "PreconditionFailed", "ConditionalRequestConflict":
		return fmt.Errorf("%s '%s': %w", op, key, ErrPreconditionFailed)
	}
	return fmt.Errorf("failed to %s '%s': %w", op, key, err)
}
