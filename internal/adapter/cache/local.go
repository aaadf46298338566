package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/ports"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// LocalCache implements ports.Cache using an in-memory map. Used as a
// fallback when Redis is unavailable, and by tests.
type LocalCache struct {
	data   map[string]cacheEntry
	mu     sync.RWMutex
	log    *zap.Logger
	stopCh chan struct{}
}

// NewLocalCache creates a new in-memory cache with periodic cleanup
func NewLocalCache(cleanupInterval time.Duration, log *zap.Logger) ports.Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	c := &LocalCache{
		data:   make(map[string]cacheEntry),
		log:    log,
		stopCh: make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval)

	log.Info("Local in-memory cache initialized",
		zap.Duration("cleanup_interval", cleanupInterval),
	)
	return c
}

func (c *LocalCache) lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		return nil, false
	}
	return entry.value, true
}

// TryRetrieve polls for key until it appears or maxWait elapses. A miss is
// (nil, nil).
func (c *LocalCache) TryRetrieve(ctx context.Context, key string, maxWait time.Duration) (*ports.CacheResult, error) {
	start := time.Now()
	deadline := start.Add(maxWait)

	for {
		if val, ok := c.lookup(key); ok {
			return &ports.CacheResult{Value: val, Latency: time.Since(start)}, nil
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

func (c *LocalCache) Store(ctx context.Context, key string, value []byte, ttl time.Duration, overwrite bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !overwrite {
		if existing, ok := c.data[key]; ok {
			if existing.expiresAt.IsZero() || existing.expiresAt.After(time.Now()) {
				return nil
			}
		}
	}

	entry := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.data[key] = entry
	return nil
}

func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *LocalCache) Ping(ctx context.Context) error {
	return nil
}

func (c *LocalCache) Close() error {
	close(c.stopCh)
	return nil
}

func (c *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *LocalCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, entry := range c.data {
		if !entry.expiresAt.IsZero() && entry.expiresAt.Before(now) {
			delete(c.data, key)
			expired++
		}
	}

	if expired > 0 {
		c.log.Debug("Cache cleanup completed", zap.Int("expired_entries", expired))
	}
}
