package repository

import (
	"context"

	"github.com/iconidentify/reelbot/internal/domain"
)

// ArtifactRepository persists delivered artifact handles by cache key.
type ArtifactRepository interface {
	// Get returns the entry for key, or domain.ErrCacheMiss.
	Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error)

	// Put stores an entry, replacing any previous one for the same key.
	Put(ctx context.Context, entry *domain.CacheEntry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key domain.CacheKey) error

	// Close releases the underlying connection.
	Close() error
}
