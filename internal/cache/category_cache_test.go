package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/config"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestCategoryCacheMissThenHit(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewRedisCategoryCache(client, 10*time.Minute)
	ctx := context.Background()

	got, err := c.GetCategories(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := []models.Category{{ID: "c1", Name: "Música", Color: "#EC4899", Icon: "music"}}
	require.NoError(t, c.SetCategories(ctx, want))

	got, err = c.GetCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCategoryCacheExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewRedisCategoryCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetCategories(ctx, []models.Category{{ID: "c1", Name: "Arte"}}))
	mr.FastForward(2 * time.Minute)

	got, err := c.GetCategories(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCategoryCacheCorruptValue(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewRedisCategoryCache(client, time.Minute)

	require.NoError(t, mr.Set(CategoriesKey, "not-json"))
	_, err := c.GetCategories(context.Background())
	assert.Error(t, err)
}

func TestInitializeRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := InitializeRedis(config.RedisConfig{Addr: mr.Addr()}, logger.NewDiscardLogger())
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = InitializeRedis(config.RedisConfig{Addr: mr.Addr()}, logger.NewDiscardLogger())
	assert.Error(t, err)
}
