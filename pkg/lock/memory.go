package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     uint64
	expiresAt time.Time
}

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	seq     uint64
	now     func() time.Time
}

// NewMemoryLocker constructs an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]memoryEntry), now: time.Now}
}

// TryLock acquires key or returns ErrHeld. A ttl <= 0 never expires.
func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.entries[key]; ok {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			return nil, ErrHeld
		}
	}
	l.seq++
	entry := memoryEntry{token: l.seq}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	l.entries[key] = entry

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if current, ok := l.entries[key]; ok && current.token == entry.token {
				delete(l.entries, key)
			}
		})
		return nil
	}, nil
}
