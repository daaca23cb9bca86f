package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerRejectsSecondHolder(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.TryLock(ctx, StudentKey("s1"), time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, StudentKey("s1"), time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	other, err := locker.TryLock(ctx, StudentKey("s2"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := locker.TryLock(ctx, StudentKey("s1"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemoryLockerExpiredEntryCanBeTaken(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	// the stale holder must not free the new holder's lock
	require.NoError(t, stale(ctx))
	_, err = locker.TryLock(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrHeld)
	require.NoError(t, fresh(ctx))
}

func TestMemoryLockerSingleWinnerUnderContention(t *testing.T) {
	locker := NewMemoryLocker()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.TryLock(context.Background(), "hot", time.Minute); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
