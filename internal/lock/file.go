package lock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/dispatchgrid/internal/ctxlog"
)

// FileLock keeps the lease in an exclusively created file. It only guards
// runs on the same host.
type FileLock struct {
	path  string
	group string
	owner string
	ttl   time.Duration
	now   func() time.Time
}

// NewFileLock creates a lock file for group inside dir (os.TempDir when empty).
func NewFileLock(dir, group, owner string, ttl time.Duration) *FileLock {
	if dir == "" {
		dir = os.TempDir()
	}
	return &FileLock{
		path:  filepath.Join(dir, "dispatchgrid-"+group+".lock"),
		group: group,
		owner: owner,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Path returns the lock file location.
func (f *FileLock) Path() string {
	return f.path
}

// Acquire implements Locker.
func (f *FileLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	logger := ctxlog.FromContext(ctx).With("group", f.group, "path", f.path)

	data, err := json.Marshal(newLease(f.group, f.owner, f.now(), f.ttl))
	if err != nil {
		return nil, err
	}

	// Two attempts: the second one follows the removal of an expired lease.
	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			_, werr := file.Write(data)
			cerr := file.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(f.path)
				return nil, fmt.Errorf("failed to write lock file: %w", errors.Join(werr, cerr))
			}
			logger.Info("🔒 Lock acquired")
			return f.release, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		existing, rerr := os.ReadFile(f.path)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read lock file: %w", rerr)
		}
		current, derr := decodeLease(existing)
		if derr == nil && !current.Expired(f.now()) {
			return nil, lockedBy(current)
		}
		logger.Warn("Removing expired or corrupt lock file.")
		removed, err := f.removeStale(existing)
		if err != nil {
			return nil, err
		}
		if !removed {
			logger.Debug("Stale lock file was replaced concurrently.")
		}
	}
	return nil, fmt.Errorf("%w: group '%s' (lost race for %s)", ErrLocked, f.group, f.path)
}

// removeStale deletes the lock file only if it still holds stale. The file is
// first moved aside atomically; if another run replaced it in the meantime
// its lease is put back and false is returned.
func (f *FileLock) removeStale(stale []byte) (bool, error) {
	aside := f.path + "." + f.owner + ".stale"
	if err := os.Rename(f.path, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to move stale lock file: %w", err)
	}
	defer os.Remove(aside)

	moved, err := os.ReadFile(aside)
	if err != nil {
		return false, fmt.Errorf("failed to read stale lock file: %w", err)
	}
	if bytes.Equal(moved, stale) {
		return true, nil
	}
	// A fresh lease was moved by mistake. Link fails if yet another run
	// created the file since, in which case that run holds the group.
	if err := os.Link(aside, f.path); err != nil && !errors.Is(err, fs.ErrExist) {
		return false, fmt.Errorf("failed to restore lock file: %w", err)
	}
	return false, nil
}

func (f *FileLock) release(ctx context.Context) error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if current, err := decodeLease(data); err == nil && current.Owner != f.owner {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	ctxlog.FromContext(ctx).Info("🔓 Lock released", "group", f.group)
	return nil
}
