package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iconidentify/reelbot/internal/domain"
	"github.com/iconidentify/reelbot/internal/repository"
)

// ArtifactCache is a best-effort view over an ArtifactRepository. Storage
// errors are logged and never returned, so a broken cache degrades to
// refetching rather than failing deliveries.
type ArtifactCache struct {
	repo   repository.ArtifactRepository
	logger *slog.Logger
}

// NewArtifactCache creates a new artifact cache.
func NewArtifactCache(repo repository.ArtifactRepository, logger *slog.Logger) *ArtifactCache {
	return &ArtifactCache{repo: repo, logger: logger}
}

// Get returns the entry for key. Lookup errors count as a miss.
func (c *ArtifactCache) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, bool) {
	entry, err := c.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			c.logger.Warn("artifact cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}
	return entry, true
}

// Put records a delivered artifact and reports whether the write succeeded.
func (c *ArtifactCache) Put(ctx context.Context, key domain.CacheKey, handle, caption string) bool {
	err := c.repo.Put(ctx, &domain.CacheEntry{
		Key:            key,
		ArtifactHandle: handle,
		Caption:        caption,
	})
	if err != nil {
		c.logger.Error("artifact cache write failed", "key", key, "error", err)
		return false
	}
	return true
}
