package jobs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, JobReport, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, JobReport, time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second lock on a running job must fail")

	_, ok, err = locker.TryLock(ctx, JobHeartbeat, time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "different jobs do not block each other")

	unlock()
	_, ok, err = locker.TryLock(ctx, JobReport, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CRM_REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("CRM_REDIS_TEST_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis is unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLocker_Integration(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	name := "test-" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), lockKeyPrefix+name) })

	first := NewRedisLocker(client)
	second := NewRedisLocker(client)
	require.NoError(t, first.Ping(ctx))

	unlock, ok, err := first.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	unlock()
	unlock2, ok, err := second.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	name := "test-" + t.Name()
	key := lockKeyPrefix + name
	t.Cleanup(func() { client.Del(context.Background(), key) })

	unlock, ok, err := NewRedisLocker(client).TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Блокировка истекла и перехвачена другим владельцем.
	require.NoError(t, client.Set(ctx, key, "other-owner", time.Minute).Err())
	unlock()

	owner, err := client.Get(ctx, key).Result()
	require.NoError(t, err)
	require.Equal(t, "other-owner", owner)
}
