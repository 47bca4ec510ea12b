// Package locker serializes work per key, used to make ticket resolution
// for one user mutually exclusive across concurrent deliveries.
package locker

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock could not be acquired within the
// locker's wait budget.
var ErrLockTimeout = errors.New("lock wait timed out")

// Locker hands out exclusive per-key locks. The returned unlock func is
// safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
