// Package lock serializes work on a single key, either inside one process or
// across instances through Redis.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be obtained before the
// context expired.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive ownership of a key. The returned release
// function is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
