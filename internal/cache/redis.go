package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/ro-savage/nz-tech-events/config"
	"github.com/ro-savage/nz-tech-events/internal/models"
)

// RedisCache provides caching and the digest run lock using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
	}, nil
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return errors.New("cache is disabled")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return errors.Wrap(err, "key not found in cache")
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}

	return nil
}

// Set stores a value in cache with optional expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.enabled {
		return errors.New("cache is disabled")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// AcquireLock takes an advisory lock with a TTL. Returns false when another
// holder already has it. With the cache disabled the lock always succeeds,
// which matches the single-scheduled-invocation deployment assumption.
func (c *RedisCache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if !c.enabled {
		return true, nil
	}
	ok, err := c.client.SetNX(ctx, lockKey(name), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to acquire lock")
	}
	return ok, nil
}

// ReleaseLock releases an advisory lock taken with AcquireLock.
func (c *RedisCache) ReleaseLock(ctx context.Context, name string) error {
	if !c.enabled {
		return nil
	}
	return c.client.Del(ctx, lockKey(name)).Err()
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// UpcomingListKey generates a cache key for a filtered upcoming listing
func UpcomingListKey(region *models.Region, city *string, eventType *models.EventType) string {
	r, c, t := "all", "all", "all"
	if region != nil {
		r = region.String()
	}
	if city != nil {
		c = *city
	}
	if eventType != nil {
		t = eventType.String()
	}
	return fmt.Sprintf("events:upcoming:%s:%s:%s", r, c, t)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}
