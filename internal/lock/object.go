package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/objectstore"
)

// ObjectLock keeps the lease as an object in the store that the guarded job
// writes to, so runs on different machines see each other.
type ObjectLock struct {
	store objectstore.Store
	group string
	owner string
	ttl   time.Duration
	now   func() time.Time
}

// NewObjectLock creates a lock for group owned by owner (the run id).
func NewObjectLock(store objectstore.Store, group, owner string, ttl time.Duration) *ObjectLock {
	return &ObjectLock{store: store, group: group, owner: owner, ttl: ttl, now: time.Now}
}

// Key returns the object key of the lease.
func (o *ObjectLock) Key() string {
	return path.Join(".locks", o.group+".lock")
}

// Acquire implements Locker. A free group is taken with a create-only write
// and an expired lease is replaced only while it still has the ETag that was
// read, so of two concurrent runs at most one gets the lease.
func (o *ObjectLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	logger := ctxlog.FromContext(ctx).With("group", o.group, "key", o.Key())

	if err := o.store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	lease := newLease(o.group, o.owner, o.now(), o.ttl)
	data, err := json.Marshal(lease)
	if err != nil {
		return nil, err
	}

	current, etag, err := o.read(ctx)
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		logger.Debug("No existing lease.")
		err = o.store.PutIfAbsent(ctx, o.Key(), data, "application/json")
	case err != nil:
		return nil, err
	case current.Owner == o.owner:
		logger.Debug("Lease already held by this run.")
		err = o.store.PutIfMatch(ctx, o.Key(), data, "application/json", etag)
	case !current.Expired(o.now()):
		return nil, lockedBy(current)
	default:
		logger.Warn("Taking over expired lease.", "previous_owner", current.Owner, "expired", current.Expires)
		err = o.store.PutIfMatch(ctx, o.Key(), data, "application/json", etag)
	}
	if errors.Is(err, objectstore.ErrPreconditionFailed) || errors.Is(err, objectstore.ErrNotFound) {
		if winner, _, rerr := o.read(ctx); rerr == nil {
			return nil, lockedBy(winner)
		}
		return nil, fmt.Errorf("%w: group '%s' (lost race for %s)", ErrLocked, o.group, o.Key())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write lease: %w", err)
	}

	logger.Info("🔒 Lock acquired", "expires", lease.Expires)
	return o.release, nil
}

func (o *ObjectLock) release(ctx context.Context) error {
	current, _, err := o.read(ctx)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.Owner != o.owner {
		ctxlog.FromContext(ctx).Warn("Lease was taken over, not releasing.", "owner", current.Owner)
		return nil
	}
	if err := o.store.Remove(ctx, o.Key()); err != nil {
		return fmt.Errorf("failed to remove lease: %w", err)
	}
	ctxlog.FromContext(ctx).Info("🔓 Lock released", "group", o.group)
	return nil
}

// read returns the lease with the ETag it was stored under. The ETag is
// taken before the content, so a concurrent rewrite makes a later
// conditional write fail rather than succeed.
func (o *ObjectLock) read(ctx context.Context) (Lease, string, error) {
	info, err := o.store.Stat(ctx, o.Key())
	if err != nil {
		return Lease{}, "", err
	}
	data, err := o.store.Get(ctx, o.Key())
	if err != nil {
		return Lease{}, "", err
	}
	l, err := decodeLease(data)
	if err != nil {
		return Lease{}, "", err
	}
	return l, info.ETag, nil
}
