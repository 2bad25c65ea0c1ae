package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iconidentify/reelbot/internal/domain"
)

// redisEntry is the JSON value stored under each key.
type redisEntry struct {
	Handle    string    `json:"handle"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisArtifactRepository stores artifact handles in Redis so several bot
// instances can share one cache.
type RedisArtifactRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisArtifactRepository connects to redisURL and verifies the connection.
// URL format: redis://[:password@]host:port/db
func NewRedisArtifactRepository(ctx context.Context, redisURL, prefix string) (*RedisArtifactRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisArtifactRepository{client: client, prefix: prefix}, nil
}

func (r *RedisArtifactRepository) key(k domain.CacheKey) string {
	return r.prefix + k.String()
}

// Get returns the cached entry for key.
func (r *RedisArtifactRepository) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var v redisEntry
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}

	return &domain.CacheEntry{Key: key, ArtifactHandle: v.Handle, Caption: v.Caption}, nil
}

// Put stores the entry without expiry.
func (r *RedisArtifactRepository) Put(ctx context.Context, entry *domain.CacheEntry) error {
	data, err := json.Marshal(redisEntry{
		Handle:    entry.ArtifactHandle,
		Caption:   entry.Caption,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	if err := r.client.Set(ctx, r.key(entry.Key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the entry for key.
func (r *RedisArtifactRepository) Delete(ctx context.Context, key domain.CacheKey) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close closes the client.
func (r *RedisArtifactRepository) Close() error {
	return r.client.Close()
}
