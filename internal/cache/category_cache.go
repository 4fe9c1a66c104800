package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-events/internal/models"
)

// CategoriesKey holds the JSON encoded category list.
const CategoriesKey = "event_categories:all"

// RedisCategoryCache caches the seeded category list. Categories only change
// through migrations, so a plain TTL is enough.
type RedisCategoryCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCategoryCache(client *redis.Client, ttl time.Duration) *RedisCategoryCache {
	return &RedisCategoryCache{Client: client, TTL: ttl}
}

// GetCategories returns nil, nil on a cache miss.
func (c *RedisCategoryCache) GetCategories(ctx context.Context) ([]models.Category, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := c.Client.Get(ctx, CategoriesKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get categories from Redis: %w", err)
	}

	var categories []models.Category
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
	}
	return categories, nil
}

func (c *RedisCategoryCache) SetCategories(ctx context.Context, categories []models.Category) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}
	if err := c.Client.Set(ctx, CategoriesKey, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store categories in Redis: %w", err)
	}
	return nil
}
