package lock

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned when the key is already locked by another holder.
var ErrHeld = errors.New("lock already held")

// Release frees a lock obtained from TryLock. Calling it more than once is harmless.
type Release func(ctx context.Context) error

// Locker hands out non-blocking, expiring exclusive locks keyed by string.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// StudentKey names the lock guarding mutations of a single student record.
func StudentKey(id string) string {
	return "student:" + id
}
