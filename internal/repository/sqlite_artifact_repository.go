package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/iconidentify/reelbot/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteArtifactRepository stores artifact handles in a SQLite database.
type SQLiteArtifactRepository struct {
	db *sql.DB
}

// NewSQLiteArtifactRepository opens the database at path and applies pending
// migrations. Use ":memory:" for a throwaway database.
func NewSQLiteArtifactRepository(ctx context.Context, path string) (*SQLiteArtifactRepository, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteArtifactRepository{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Get returns the cached entry for key.
func (r *SQLiteArtifactRepository) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	var handle string
	var caption sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT artifact_handle, caption FROM artifacts WHERE cache_key = ?
	`, key.String()).Scan(&handle, &caption)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact: %w", err)
	}

	return &domain.CacheEntry{
		Key:            key,
		ArtifactHandle: handle,
		Caption:        caption.String,
	}, nil
}

// Put inserts or replaces the entry.
func (r *SQLiteArtifactRepository) Put(ctx context.Context, entry *domain.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO artifacts (cache_key, artifact_handle, caption, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.Key.String(), entry.ArtifactHandle, nullString(entry.Caption), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

// Delete removes the entry for key.
func (r *SQLiteArtifactRepository) Delete(ctx context.Context, key domain.CacheKey) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE cache_key = ?`, key.String()); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *SQLiteArtifactRepository) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
