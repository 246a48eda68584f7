package cachestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/cfstat/internal/domain/model"
	"github.com/okian/cfstat/pkg/logger"
	"github.com/okian/cfstat/pkg/metrics"
)

// FileStore keeps one JSON file per account under a cache directory. Records
// for distinct accounts never share a file, so concurrent tasks do not
// contend.
type FileStore struct {
	dir    string
	logger logger.Logger
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string, opts ...FileOption) *FileStore {
	s := &FileStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("cachestore")
	}
	return s
}

// FileOption applies a configuration option to the FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets a custom logger for the store.
func WithFileLogger(l logger.Logger) FileOption {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// Load reads the account's record, returning an empty one on any failure.
func (s *FileStore) Load(ctx context.Context, account string) model.AccountCache {
	data, err := os.ReadFile(s.path(account))
	if os.IsNotExist(err) {
		err = ErrNoRecord
	}
	return loadOrReset(ctx, s.logger, account, data, err)
}

// Save writes the record to a temporary file and atomically renames it over
// the account's record, so an interrupted write never leaves a partial file.
func (s *FileStore) Save(ctx context.Context, account string, cache model.AccountCache) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		metrics.RecordCacheSaveError()
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := encodeRecord(cache)
	if err != nil {
		metrics.RecordCacheSaveError()
		return fmt.Errorf("encoding cache record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fileName(account)+".tmp-*")
	if err != nil {
		metrics.RecordCacheSaveError()
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		metrics.RecordCacheSaveError()
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		metrics.RecordCacheSaveError()
		return fmt.Errorf("closing temp record: %w", err)
	}
	if err := os.Rename(tmpName, s.path(account)); err != nil {
		_ = os.Remove(tmpName)
		metrics.RecordCacheSaveError()
		return fmt.Errorf("replacing record: %w", err)
	}
	return nil
}

// Close implements Store; the file store holds no open resources.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(account string) string {
	return filepath.Join(s.dir, fileName(account)+".json")
}

// fileName maps a handle to a safe file name. Characters outside the judge's
// handle alphabet become underscores.
func fileName(account string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, account)
}
