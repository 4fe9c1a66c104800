package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ToggleLock keeps one participation change per user and event in flight.
// The database transaction stays the source of truth; the lock only turns a
// double submit into a fast rejection.
type ToggleLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewToggleLock(client *redis.Client, ttl time.Duration) *ToggleLock {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &ToggleLock{Client: client, TTL: ttl}
}

func lockKey(eventID, userID string) string {
	return fmt.Sprintf("participation_lock:%s:%s", eventID, userID)
}

// Acquire returns false when another toggle holds the lock.
func (l *ToggleLock) Acquire(ctx context.Context, eventID, userID, token string) (bool, error) {
	return l.Client.SetNX(ctx, lockKey(eventID, userID), token, l.TTL).Result()
}

// Release deletes the lock only if it is still held by token.
func (l *ToggleLock) Release(ctx context.Context, eventID, userID, token string) error {
	key := lockKey(eventID, userID)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == token {
		return l.Client.Del(ctx, key).Err()
	}
	return nil
}

// IsLocked reports whether a toggle is currently in flight.
func (l *ToggleLock) IsLocked(ctx context.Context, eventID, userID string) (bool, error) {
	n, err := l.Client.Exists(ctx, lockKey(eventID, userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
