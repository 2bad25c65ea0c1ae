package repository

import (
	"context"
	"fmt"

	"github.com/iconidentify/reelbot/internal/config"
)

// Open returns the artifact repository selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (ArtifactRepository, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return NewSQLiteArtifactRepository(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedisArtifactRepository(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
