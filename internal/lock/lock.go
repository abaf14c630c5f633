// Package lock provides mutual exclusion between overlapping dispatches of
// the same concurrency group. A lock is a lease: it names its owner and an
// expiry, and an expired lease may be taken over by anyone.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrLocked is returned when another run holds an unexpired lease.
var ErrLocked = errors.New("concurrency group is locked by another run")

// DefaultTTL bounds how long a crashed run can block the group.
const DefaultTTL = 6 * time.Hour

// Locker acquires a lease for its group.
type Locker interface {
	// Acquire takes the lease or fails with an error wrapping ErrLocked. The
	// returned release function gives it back.
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Lease is the serialized lock content.
type Lease struct {
	Group    string    `json:"group"`
	Owner    string    `json:"owner"`
	Acquired time.Time `json:"acquired"`
	Expires  time.Time `json:"expires"`
}

// Expired reports whether the lease is no longer valid at now.
func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.Expires)
}

func newLease(group, owner string, now time.Time, ttl time.Duration) Lease {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Lease{Group: group, Owner: owner, Acquired: now.UTC(), Expires: now.UTC().Add(ttl)}
}

func decodeLease(data []byte) (Lease, error) {
	var l Lease
	if err := json.Unmarshal(data, &l); err != nil {
		return Lease{}, fmt.Errorf("corrupt lease: %w", err)
	}
	return l, nil
}

func lockedBy(l Lease) error {
	return fmt.Errorf("%w: group '%s' held by run %s until %s", ErrLocked, l.Group, l.Owner, l.Expires.Format(time.RFC3339))
}
