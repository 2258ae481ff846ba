package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finflow/backend/internal/domain/finance"
	"github.com/redis/go-redis/v9"
)

// redisListPayload is the stored representation of a cached list
type redisListPayload struct {
	Documents []finance.Document `json:"documents"`
	StoredAt  time.Time          `json:"stored_at"`
}

// RedisDocumentListCache implements DocumentListCache using Redis. Suitable
// for distributed deployments where multiple instances share cached lists.
// Entries are kept in Redis for twice the TTL; within the second half of
// that window they are served flagged stale.
type RedisDocumentListCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDocumentListCache creates a new Redis-based list cache
func NewRedisDocumentListCache(cfg RedisConfig, ttl time.Duration) (*RedisDocumentListCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDocumentListCache{
		client:    client,
		keyPrefix: "cache:list:",
		ttl:       ttl,
	}, nil
}

// NewRedisDocumentListCacheWithClient creates a cache with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisDocumentListCacheWithClient(client *redis.Client, ttl time.Duration) *RedisDocumentListCache {
	return &RedisDocumentListCache{
		client:    client,
		keyPrefix: "cache:list:",
		ttl:       ttl,
	}
}

// Get returns the cached list for a key, or nil when absent
func (c *RedisDocumentListCache) Get(ctx context.Context, key string) (*finance.CachedDocumentList, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached list: %w", err)
	}

	var payload redisListPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode cached list: %w", err)
	}

	return &finance.CachedDocumentList{
		Documents: payload.Documents,
		StoredAt:  payload.StoredAt,
		Stale:     time.Since(payload.StoredAt) > c.ttl,
	}, nil
}

// Set stores a fresh list for a key
func (c *RedisDocumentListCache) Set(ctx context.Context, key string, documents []finance.Document) error {
	payload, err := json.Marshal(redisListPayload{
		Documents: documents,
		StoredAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode list for caching: %w", err)
	}

	if err := c.client.Set(ctx, c.keyPrefix+key, payload, 2*c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached list: %w", err)
	}
	return nil
}

// Invalidate removes every entry whose key starts with the given prefix,
// scanning in batches to avoid blocking Redis
func (c *RedisDocumentListCache) Invalidate(ctx context.Context, keyPrefix string) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+keyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to invalidate cached lists: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached lists: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cached lists: %w", err)
		}
	}
	return nil
}

// Close closes the underlying Redis client
func (c *RedisDocumentListCache) Close() error {
	return c.client.Close()
}

// Ensure RedisDocumentListCache implements DocumentListCache
var _ finance.DocumentListCache = (*RedisDocumentListCache)(nil)
