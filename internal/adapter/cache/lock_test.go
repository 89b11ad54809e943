package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNopLocker(t *testing.T) {
	release, ok, err := NopLocker{}.Acquire(context.Background(), "doc-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, release)
	release()
}

func TestRedisLockerUnavailable(t *testing.T) {
	db := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer db.Close()

	_, ok, err := NewRedisLocker(db).Acquire(context.Background(), "doc-1", time.Second)
	require.Error(t, err)
	require.False(t, ok)
}

func TestConnectUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Connect(ctx, "redis://127.0.0.1:1/0")
	require.Error(t, err)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	db := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { db.Close() })
	return mr, db
}

func TestRedisLockerExclusive(t *testing.T) {
	mr, db := newMiniredis(t)
	locker := NewRedisLocker(db)
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "0012345", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists(keyPrefix+"0012345"))
	require.Equal(t, time.Minute, mr.TTL(keyPrefix+"0012345"))

	_, ok, err = locker.Acquire(ctx, "0012345", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second submission of the same receipt waits")

	other, ok, err := locker.Acquire(ctx, "0099999", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "other receipts are not blocked")
	other()

	release()
	require.False(t, mr.Exists(keyPrefix+"0012345"))

	again, ok, err := locker.Acquire(ctx, "0012345", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	again()
}

func TestRedisLockerReleaseAfterExpiry(t *testing.T) {
	mr, db := newMiniredis(t)
	locker := NewRedisLocker(db)
	ctx := context.Background()

	stale, ok, err := locker.Acquire(ctx, "0012345", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(keyPrefix+"0012345"))

	current, ok, err := locker.Acquire(ctx, "0012345", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be taken over")
	held, err := mr.Get(keyPrefix + "0012345")
	require.NoError(t, err)

	// The slow holder finishes late and must not drop the new owner's lock
	stale()
	require.True(t, mr.Exists(keyPrefix+"0012345"))
	now, err := mr.Get(keyPrefix + "0012345")
	require.NoError(t, err)
	require.Equal(t, held, now)

	current()
	require.False(t, mr.Exists(keyPrefix+"0012345"))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	for _, url := range []string{"redis://" + mr.Addr() + "/0", mr.Addr()} {
		db, err := Connect(ctx, url)
		require.NoError(t, err, url)
		require.NoError(t, db.Ping(ctx).Err())
		db.Close()
	}
}
