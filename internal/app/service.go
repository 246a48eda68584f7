// Package app wires the fetcher, cache store and aggregation logic into the
// account summarizing service.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cfstat/internal/adapters/cachestore"
	"github.com/okian/cfstat/internal/domain/aggregate"
	"github.com/okian/cfstat/internal/domain/model"
	"github.com/okian/cfstat/pkg/logger"
	"github.com/okian/cfstat/pkg/metrics"
)

// defaultWorkerCeiling caps concurrent in-flight account fetches regardless
// of how many accounts a request names.
const defaultWorkerCeiling = 6

// defaultGlobalFloor is the earliest submission time the incremental mode
// counts; nothing older ever enters a cache record.
var defaultGlobalFloor = time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)

// Fetcher is the judge client surface the service depends on.
type Fetcher interface {
	FetchNewSubmissions(ctx context.Context, handle string, sinceExclusive, untilExclusive int64) ([]model.Submission, int64, error)
	CheckHandle(ctx context.Context, handle string) (bool, error)
}

// Result is the outcome for one dispatched account. Exactly one of Summary
// or Err is meaningful: a failed fetch leaves Summary nil and Err set.
type Result struct {
	Account string
	Summary *model.AccountSummary
	Solved  model.SolvedSet
	Err     string
}

// Failed reports whether the account's fetch failed.
func (r Result) Failed() bool { return r.Summary == nil }

// Service runs account summaries with bounded fan-out and multi-level
// deduplication.
type Service struct {
	fetcher       Fetcher
	store         cachestore.Store
	workerCeiling int
	globalFloor   time.Time
	logger        logger.Logger
}

// New constructs a Service. A Fetcher and a Store must be supplied via
// options.
func New(opts ...Option) *Service {
	s := &Service{
		workerCeiling: defaultWorkerCeiling,
		globalFloor:   defaultGlobalFloor,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("app")
	}
	return s
}

// Summarize processes every distinct requested account concurrently, bounded
// by the worker ceiling, and returns one Result per distinct account. A nil
// window selects incremental mode; otherwise results are computed fresh for
// the bounded window. Per-account failures are recorded in the Result, never
// returned as an error.
func (s *Service) Summarize(ctx context.Context, accounts []string, window *Window) (map[string]Result, error) {
	if err := window.validate(); err != nil {
		return nil, err
	}
	distinct := dedupeAccounts(accounts)
	if len(distinct) == 0 {
		return nil, ErrNoAccounts
	}

	runID := uuid.NewString()
	workers := s.workerCeiling
	if workers > len(distinct) {
		workers = len(distinct)
	}

	s.logger.Info(ctx, "starting batch",
		logger.String("run_id", runID),
		logger.Int("accounts", len(distinct)),
		logger.Int("workers", workers),
	)

	jobs := make(chan string, len(distinct))
	for _, account := range distinct {
		jobs <- account
	}
	close(jobs)

	out := make(chan Result, len(distinct))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for account := range jobs {
				out <- s.Process(ctx, account, window)
			}
		}()
	}
	wg.Wait()
	close(out)

	// Completion order is unspecified; the keyed map makes it irrelevant.
	results := make(map[string]Result, len(distinct))
	for r := range out {
		results[r.Account] = r
	}

	s.logger.Info(ctx, "batch finished",
		logger.String("run_id", runID),
		logger.Int("accounts", len(results)),
	)
	return results, nil
}

// Process summarizes a single account. It is also the retry entry point for
// accounts that failed inside a batch.
func (s *Service) Process(ctx context.Context, account string, window *Window) Result {
	metrics.IncInFlightFetches()
	defer metrics.DecInFlightFetches()

	if window != nil {
		return s.processWindow(ctx, account, window)
	}
	return s.processIncremental(ctx, account)
}

// processIncremental fetches the delta since the account's cache checkpoint,
// merges it into the cache and persists the result.
func (s *Service) processIncremental(ctx context.Context, account string) Result {
	cache := s.store.Load(ctx, account)
	floor := s.globalFloor.Unix()

	// History below the floor never counts, so the floor also bounds the
	// first fetch of an account with an empty cache.
	since := cache.LastSeen
	if since < floor-1 {
		since = floor - 1
	}

	subs, newest, err := s.fetcher.FetchNewSubmissions(ctx, account, since, 0)
	if err != nil {
		return s.failed(ctx, account, err)
	}

	for _, sub := range subs {
		if !sub.Solved() || sub.CreationTime < floor {
			continue
		}
		cache.Solved.Merge(sub.Problem.Key(), model.SolvedEntry{
			Rating: sub.Problem.Rating,
			Tags:   sub.Problem.Tags,
		})
	}
	if newest > cache.LastSeen {
		cache.LastSeen = newest
	}

	// The cache is an optimization; a failed save costs a re-fetch next run
	// but does not fail the account.
	if err := s.store.Save(ctx, account, cache); err != nil {
		s.logger.Warn(ctx, "cache save failed",
			logger.String("account", account),
			logger.Error(err),
		)
	}

	metrics.RecordAccountProcessed()
	summary := model.Summarize(cache.Solved)
	return Result{Account: account, Summary: &summary, Solved: cache.Solved}
}

// processWindow computes the account's solved set for a bounded window from
// scratch, without touching the cache.
func (s *Service) processWindow(ctx context.Context, account string, window *Window) Result {
	since, until := window.bounds()
	subs, _, err := s.fetcher.FetchNewSubmissions(ctx, account, since, until)
	if err != nil {
		return s.failed(ctx, account, err)
	}

	solved := make(model.SolvedSet)
	for _, sub := range subs {
		if !sub.Solved() {
			continue
		}
		solved.Merge(sub.Problem.Key(), model.SolvedEntry{
			Rating: sub.Problem.Rating,
			Tags:   sub.Problem.Tags,
		})
	}

	metrics.RecordAccountProcessed()
	summary := model.Summarize(solved)
	return Result{Account: account, Summary: &summary, Solved: solved}
}

func (s *Service) failed(ctx context.Context, account string, err error) Result {
	metrics.RecordAccountFailed()
	s.logger.Error(ctx, "account fetch failed",
		logger.String("account", account),
		logger.Error(err),
	)
	return Result{Account: account, Err: err.Error()}
}

// AggregateByPersons summarizes every account referenced by the person
// definitions (each distinct account fetched exactly once) and folds the
// results into per-person and global aggregates.
func (s *Service) AggregateByPersons(ctx context.Context, persons []aggregate.Person, window *Window) ([]aggregate.PersonAggregate, aggregate.Aggregate, error) {
	var accounts []string
	for _, p := range persons {
		accounts = append(accounts, p.Accounts...)
	}

	results, err := s.Summarize(ctx, accounts, window)
	if err != nil {
		return nil, aggregate.Aggregate{}, err
	}

	solved := make(map[string]model.SolvedSet, len(results))
	failed := make(map[string]string)
	for account, r := range results {
		if r.Failed() {
			failed[account] = r.Err
			continue
		}
		solved[account] = r.Solved
	}

	persAgg, global := aggregate.ByPersons(persons, solved, failed)
	return persAgg, global, nil
}

// CheckHandle reports whether the handle exists on the judge.
func (s *Service) CheckHandle(ctx context.Context, handle string) (bool, error) {
	return s.fetcher.CheckHandle(ctx, handle)
}

// dedupeAccounts drops repeated handles while preserving first-seen order,
// so an account named by several persons is fetched once.
func dedupeAccounts(accounts []string) []string {
	seen := make(map[string]struct{}, len(accounts))
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
