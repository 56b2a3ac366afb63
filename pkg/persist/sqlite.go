package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteConfig holds configuration for the SQLite persistor.
type SQLiteConfig struct {
	Path string `env:"PATH" envDefault:"query-cache.db"`
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS query_cache (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLitePersistor keeps entries in a single table of an on-disk database.
type SQLitePersistor struct {
	sqlDB  *sql.DB
	logger zerolog.Logger
}

// OpenSQLitePersistor opens (creating if needed) the database at cfg.Path.
func OpenSQLitePersistor(ctx context.Context, cfg *SQLiteConfig, logger zerolog.Logger) (*SQLitePersistor, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(cfg.Path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create query_cache table: %w", err)
	}

	logger.Info().Str("path", cleanPath).Msg("SQLitePersistor opened.")
	return &SQLitePersistor{
		sqlDB:  sqlDB,
		logger: logger.With().Str("component", "SQLitePersistor").Logger(),
	}, nil
}

// GetItem reads one row.
func (p *SQLitePersistor) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.sqlDB.QueryRowContext(ctx, `SELECT value FROM query_cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

// SetItem upserts one row.
func (p *SQLitePersistor) SetItem(ctx context.Context, key, value string) error {
	_, err := p.sqlDB.ExecContext(ctx,
		`INSERT INTO query_cache (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("Failed to upsert cache entry.")
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes one row.
func (p *SQLitePersistor) RemoveItem(ctx context.Context, key string) error {
	if _, err := p.sqlDB.ExecContext(ctx, `DELETE FROM query_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear deletes every row.
func (p *SQLitePersistor) Clear(ctx context.Context) error {
	if _, err := p.sqlDB.ExecContext(ctx, `DELETE FROM query_cache`); err != nil {
		return fmt.Errorf("clear query_cache: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (p *SQLitePersistor) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}
