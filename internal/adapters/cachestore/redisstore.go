package cachestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cfstat/internal/domain/model"
	"github.com/okian/cfstat/pkg/logger"
	"github.com/okian/cfstat/pkg/metrics"
)

const redisKeyPrefix = "cfstat:cache:"

// RedisStore keeps account records in redis. SET replaces the whole value in
// one operation, satisfying the atomic-replace contract.
type RedisStore struct {
	cli    *redis.Client
	logger logger.Logger
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		cli: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("cachestore")
	}
	return s
}

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithRedisLogger sets a custom logger for the store.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(s *RedisStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// Load reads the account's record, returning an empty one on any failure.
func (s *RedisStore) Load(ctx context.Context, account string) model.AccountCache {
	data, err := s.cli.Get(ctx, redisKeyPrefix+account).Bytes()
	if errors.Is(err, redis.Nil) {
		err = ErrNoRecord
	}
	return loadOrReset(ctx, s.logger, account, data, err)
}

// Save replaces the account's record with a single SET.
func (s *RedisStore) Save(ctx context.Context, account string, cache model.AccountCache) error {
	data, err := encodeRecord(cache)
	if err != nil {
		metrics.RecordCacheSaveError()
		return fmt.Errorf("encoding cache record: %w", err)
	}
	if err := s.cli.Set(ctx, redisKeyPrefix+account, data, 0).Err(); err != nil {
		metrics.RecordCacheSaveError()
		return fmt.Errorf("writing cache record: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error { return s.cli.Close() }
