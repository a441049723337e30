// Package cache keeps recent scrape results in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timmy/jobalerts/internal/domain"
)

// Cache provides Redis-backed caching for scraped postings.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at the given URL and returns a Cache.
// URL format: redis://localhost:6379/0
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Get retrieves cached postings for source and scope.
// Returns the postings and true if a valid entry exists, or nil and false otherwise.
func (c *Cache) Get(ctx context.Context, source, scope string) ([]domain.RawJob, bool) {
	data, err := c.client.Get(ctx, buildKey(source, scope)).Bytes()
	if err != nil {
		return nil, false
	}

	var jobs []domain.RawJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, false
	}

	return jobs, true
}

// Set stores postings with the configured TTL.
func (c *Cache) Set(ctx context.Context, source, scope string, jobs []domain.RawJob) error {
	data, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("cache: marshal error: %w", err)
	}

	return c.client.Set(ctx, buildKey(source, scope), data, c.ttl).Err()
}

// Invalidate drops the entry for source and scope.
func (c *Cache) Invalidate(ctx context.Context, source, scope string) error {
	return c.client.Del(ctx, buildKey(source, scope)).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func buildKey(source, scope string) string {
	raw := strings.ToLower(source + ":" + scope)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("jobalerts:%s:%x", strings.ToLower(source), hash[:8])
}
