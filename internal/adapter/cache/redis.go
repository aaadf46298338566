package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/ports"
)

// pollInterval is how often a bounded-wait retrieval rechecks the backend.
const pollInterval = 50 * time.Millisecond

type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisCache(url string, log *zap.Logger) (ports.Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Successfully connected to Redis")
	return &RedisCache{
		client: client,
		log:    log,
	}, nil
}

// TryRetrieve polls for key until it appears or maxWait elapses. A miss is
// (nil, nil); only transport failures surface as errors.
func (c *RedisCache) TryRetrieve(ctx context.Context, key string, maxWait time.Duration) (*ports.CacheResult, error) {
	start := time.Now()
	deadline := start.Add(maxWait)

	for {
		val, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return &ports.CacheResult{Value: val, Latency: time.Since(start)}, nil
		}
		if err != redis.Nil {
			return nil, fmt.Errorf("redis get %q: %w", key, err)
		}
		if time.Now().Add(pollInterval).After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (c *RedisCache) Store(ctx context.Context, key string, value []byte, ttl time.Duration, overwrite bool) error {
	if overwrite {
		return c.client.Set(ctx, key, value, ttl).Err()
	}
	return c.client.SetNX(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
