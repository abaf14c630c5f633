package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/lock"
	"github.com/vk/dispatchgrid/internal/objectstore"
	"github.com/vk/dispatchgrid/internal/schema"
)

// newLocker picks the lock backend for a workflow's concurrency block: an
// object in MinIO when a `minio` block is present, a local file otherwise.
func newLocker(ctx context.Context, c *config.Concurrency, conv config.Converter, evalCtx *hcl.EvalContext, lockDir, runID string) (lock.Locker, error) {
	logger := ctxlog.FromContext(ctx)

	if c.MinIO == nil {
		l := lock.NewFileLock(lockDir, c.Group, runID, c.TTL)
		logger.Debug("Using local file lock.", "path", l.Path())
		return l, nil
	}

	var backend schema.MinIOLock
	if err := conv.DecodeBody(ctx, c.MinIO, evalCtx, &backend); err != nil {
		return nil, fmt.Errorf("invalid concurrency minio block: %w", err)
	}
	secure := true
	if backend.Secure != nil {
		secure = *backend.Secure
	}
	store, err := objectstore.NewMinIO(objectstore.Config{
		Endpoint:        backend.Endpoint,
		Bucket:          backend.Bucket,
		Region:          backend.Region,
		AccessKeyID:     backend.AccessKeyID,
		SecretAccessKey: backend.SecretAccessKey,
		SessionToken:    backend.SessionToken,
		Secure:          secure,
	})
	if err != nil {
		return nil, err
	}
	l := lock.NewObjectLock(store, c.Group, runID, c.TTL)
	logger.Debug("Using object store lock.", "endpoint", backend.Endpoint, "bucket", backend.Bucket, "key", l.Key())
	return l, nil
}
