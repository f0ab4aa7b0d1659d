package triage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionLockFixture(t *testing.T) *RedisSessionLock {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionLock(client)
}

func TestRedisSessionLockMutualExclusion(t *testing.T) {
	lock := newSessionLockFixture(t)

	release, err := lock.Acquire(context.Background(), "stu-1/sess-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := lock.Acquire(context.Background(), "stu-1/sess-1")
		if err != nil {
			t.Errorf("second acquire failed: %v", err)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while the lock was held")
	case <-time.After(200 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestRedisSessionLockDistinctKeysIndependent(t *testing.T) {
	lock := newSessionLockFixture(t)

	releaseA, err := lock.Acquire(context.Background(), "stu-1/sess-a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		releaseB, err := lock.Acquire(ctx, "stu-1/sess-b")
		if err == nil {
			releaseB()
		}
		done <- err
	}()

	require.NoError(t, <-done, "a different session must not wait on this lock")
}

func TestRedisSessionLockAcquireHonorsContext(t *testing.T) {
	lock := newSessionLockFixture(t)

	release, err := lock.Acquire(context.Background(), "stu-1/sess-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err = lock.Acquire(ctx, "stu-1/sess-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
