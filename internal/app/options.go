package app

import (
	"time"

	"github.com/okian/cfstat/internal/adapters/cachestore"
	"github.com/okian/cfstat/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFetcher injects the judge client.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithStore injects the account cache store.
func WithStore(st cachestore.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithWorkerCeiling caps concurrent account fetches.
func WithWorkerCeiling(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCeiling = n
		}
	}
}

// WithGlobalFloor sets the earliest submission time counted in incremental
// mode.
func WithGlobalFloor(t time.Time) Option {
	return func(s *Service) {
		if !t.IsZero() {
			s.globalFloor = t
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
