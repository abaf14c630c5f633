// Package objectstore is a small bucket-scoped view over an S3 compatible
// object store.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ErrPreconditionFailed is returned when a conditional write loses: the key
// already exists, or no longer has the expected ETag.
var ErrPreconditionFailed = errors.New("object precondition failed")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Store is bound to a single bucket.
type Store interface {
	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// PutIfAbsent writes key only if it does not exist yet.
	PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error
	// PutIfMatch replaces key only while its ETag is still etag.
	PutIfMatch(ctx context.Context, key string, data []byte, contentType, etag string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// List returns every object under prefix, recursively, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}
