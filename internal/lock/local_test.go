package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "student:1:quiz:1")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			current := atomic.AddInt32(&active, 1)
			for {
				seen := atomic.LoadInt32(&maxActive)
				if current <= seen || atomic.CompareAndSwapInt32(&maxActive, seen, current) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxActive)
	require.Equal(t, 0, locker.size())
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	releaseA, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "k")
	require.ErrorIs(t, err, ErrNotAcquired)

	release()
	release()
	require.Equal(t, 0, locker.size())
}
