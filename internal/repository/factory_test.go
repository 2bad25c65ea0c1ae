package repository

import (
	"context"
	"testing"

	"github.com/iconidentify/reelbot/internal/config"
)

func TestOpen(t *testing.T) {
	repo, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendSQLite, SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	defer repo.Close()

	if _, ok := repo.(*SQLiteArtifactRepository); !ok {
		t.Errorf("Open returned %T, want *SQLiteArtifactRepository", repo)
	}

	if _, err := Open(context.Background(), config.StorageConfig{Backend: "memcached"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
