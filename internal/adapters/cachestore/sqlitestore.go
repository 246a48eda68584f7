package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/okian/cfstat/internal/domain/model"
	"github.com/okian/cfstat/pkg/logger"
	"github.com/okian/cfstat/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS account_cache (
    account   TEXT PRIMARY KEY,
    record    TEXT NOT NULL,
    saved_at  TEXT NOT NULL
);
`

// SQLiteStore keeps account records in a single sqlite database. Row
// replacement is transactional, which gives the same atomic-replace guarantee
// as the file store's rename.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenSQLiteStore opens or creates the cache database at dbPath.
func OpenSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("cachestore")
	}
	return s, nil
}

// SQLiteOption applies a configuration option to the SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteLogger sets a custom logger for the store.
func WithSQLiteLogger(l logger.Logger) SQLiteOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// Load reads the account's record, returning an empty one on any failure.
func (s *SQLiteStore) Load(ctx context.Context, account string) model.AccountCache {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT record FROM account_cache WHERE account = ?", account).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoRecord
	}
	return loadOrReset(ctx, s.logger, account, data, err)
}

// Save replaces the account's record in one statement.
func (s *SQLiteStore) Save(ctx context.Context, account string, cache model.AccountCache) error {
	data, err := encodeRecord(cache)
	if err != nil {
		metrics.RecordCacheSaveError()
		return fmt.Errorf("encoding cache record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO account_cache (account, record, saved_at) VALUES (?, ?, ?)",
		account, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		metrics.RecordCacheSaveError()
		return fmt.Errorf("writing cache record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
