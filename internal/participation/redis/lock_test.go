package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestAcquireAndRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewToggleLock(client, 5*time.Second)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "event-1", "user-1", "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "event-1", "user-1", "token-b")
	require.NoError(t, err)
	assert.False(t, ok, "second toggle must be rejected while the first is in flight")

	// other users and events are independent
	ok, err = l.Acquire(ctx, "event-1", "user-2", "token-c")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "event-1", "user-1", "token-a"))

	ok, err = l.Acquire(ctx, "event-1", "user-1", "token-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewToggleLock(client, 5*time.Second)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "event-1", "user-1", "token-a")
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, "event-1", "user-1", "token-b"))

	locked, err := l.IsLocked(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestLockExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewToggleLock(client, 2*time.Second)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "event-1", "user-1", "token-a")
	require.NoError(t, err)

	mr.FastForward(3 * time.Second)

	locked, err := l.IsLocked(ctx, "event-1", "user-1")
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, l.Release(ctx, "event-1", "user-1", "token-a"))
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewToggleLock(client, 5*time.Second)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(ctx, "event-1", "user-1", "token")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestNewToggleLockDefaultsTTL(t *testing.T) {
	l := NewToggleLock(nil, 0)
	assert.Equal(t, 5*time.Second, l.TTL)
}
