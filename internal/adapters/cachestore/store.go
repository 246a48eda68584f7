// Package cachestore persists the per-account incremental cache records.
//
// All backends share the same contract: Load never fails (a missing, corrupt
// or version-mismatched record comes back as a fresh empty one, and the reset
// is logged), and Save atomically replaces the account's record so a reader
// never observes a partial write.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/cfstat/internal/domain/model"
	"github.com/okian/cfstat/pkg/logger"
	"github.com/okian/cfstat/pkg/metrics"
)

// Store provides load/save access to account cache records, keyed by handle.
// Concurrent calls for distinct accounts are safe; concurrent calls for the
// same account must be serialized by the caller.
type Store interface {
	Load(ctx context.Context, account string) model.AccountCache
	Save(ctx context.Context, account string, cache model.AccountCache) error
	Close() error
}

// record is the serialized cache form. Problem keys are encoded as
// "<contestId>:<index>" strings only at this boundary.
type record struct {
	Version  int                          `json:"version"`
	LastSeen int64                        `json:"last_seen"`
	Solved   map[string]model.SolvedEntry `json:"solved"`
}

func encodeRecord(c model.AccountCache) ([]byte, error) {
	return json.Marshal(record{
		Version:  c.Version,
		LastSeen: c.LastSeen,
		Solved:   c.Solved.Encode(),
	})
}

func decodeRecord(data []byte) (model.AccountCache, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return model.AccountCache{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if r.Version != model.CacheVersion {
		return model.AccountCache{}, fmt.Errorf("%w: have %d, want %d", ErrVersionMismatch, r.Version, model.CacheVersion)
	}
	solved, err := model.DecodeSolvedSet(r.Solved)
	if err != nil {
		return model.AccountCache{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return model.AccountCache{Version: r.Version, LastSeen: r.LastSeen, Solved: solved}, nil
}

// loadOrReset decodes data into a cache record, downgrading every failure to
// a fresh empty record. Cache corruption is self-healing at the cost of a
// full re-fetch for that account.
func loadOrReset(ctx context.Context, log logger.Logger, account string, data []byte, readErr error) model.AccountCache {
	metrics.RecordCacheLoad()

	if readErr != nil {
		if !errors.Is(readErr, ErrNoRecord) {
			metrics.RecordCacheInvalidation()
			log.Warn(ctx, "cache read failed, starting from empty record",
				logger.String("account", account),
				logger.Error(readErr),
			)
		}
		return model.EmptyCache()
	}

	cache, err := decodeRecord(data)
	if err != nil {
		metrics.RecordCacheInvalidation()
		log.Warn(ctx, "cache record invalidated, starting from empty record",
			logger.String("account", account),
			logger.Error(err),
		)
		return model.EmptyCache()
	}
	return cache
}
