// Package redis caches identifier resolution for the redirect hot path.
// Records are immutable after creation except for visit counters, which the
// cache does not hold, so entries never need invalidation; expiry is checked
// against the cached timestamp on every hit.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trimlink/trimlink/internal/models"
)

// ErrCacheMiss is returned when the identifier has no cached entry.
var ErrCacheMiss = errors.New("cache miss")

const defaultTTL = time.Hour

type cachedURL struct {
	ID          int64      `json:"id"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type URLCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewURLCache(client *redis.Client, ttl time.Duration) *URLCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &URLCache{
		client: client,
		ttl:    ttl,
	}
}

func key(identifier string) string {
	return fmt.Sprintf("url:%s", identifier)
}

// Get returns the cached resolution for the identifier. Only the fields
// needed to serve a redirect are populated on the returned record.
func (c *URLCache) Get(ctx context.Context, identifier string) (*models.URL, error) {
	const op = "database.redis.URLCache.Get"

	data, err := c.client.Get(ctx, key(identifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, ErrCacheMiss)
		}

		return nil, fmt.Errorf("%s: failed to get cached url: %w", op, err)
	}

	var cached cachedURL
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal cached url: %w", op, err)
	}

	return &models.URL{
		ID:          cached.ID,
		OriginalURL: cached.OriginalURL,
		ExpiresAt:   cached.ExpiresAt,
	}, nil
}

// Set stores the record's resolution fields under the identifier.
func (c *URLCache) Set(ctx context.Context, identifier string, url *models.URL) error {
	const op = "database.redis.URLCache.Set"

	data, err := json.Marshal(cachedURL{
		ID:          url.ID,
		OriginalURL: url.OriginalURL,
		ExpiresAt:   url.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to marshal url: %w", op, err)
	}

	if err := c.client.Set(ctx, key(identifier), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to cache url: %w", op, err)
	}

	return nil
}
