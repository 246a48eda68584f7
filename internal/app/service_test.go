package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/cfstat/internal/adapters/judge"
	"github.com/okian/cfstat/internal/app"
	"github.com/okian/cfstat/internal/domain/aggregate"
	"github.com/okian/cfstat/internal/domain/model"
	"github.com/okian/cfstat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// fakeFetcher serves canned newest-first submissions with the real client's
// bound semantics and records per-handle call counts and bounds.
type fakeFetcher struct {
	mu        sync.Mutex
	subs      map[string][]model.Submission
	fail      map[string]error
	calls     map[string]int
	lastSince map[string]int64
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		subs:      make(map[string][]model.Submission),
		fail:      make(map[string]error),
		calls:     make(map[string]int),
		lastSince: make(map[string]int64),
	}
}

func (f *fakeFetcher) FetchNewSubmissions(_ context.Context, handle string, since, until int64) ([]model.Submission, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[handle]++
	f.lastSince[handle] = since
	if err := f.fail[handle]; err != nil {
		return nil, since, &judge.FetchError{Handle: handle, Err: err}
	}

	newest := since
	var out []model.Submission
	for _, s := range f.subs[handle] {
		if s.CreationTime <= since {
			break
		}
		if until > 0 && s.CreationTime >= until {
			continue
		}
		out = append(out, s)
		if s.CreationTime > newest {
			newest = s.CreationTime
		}
	}
	return out, newest, nil
}

func (f *fakeFetcher) CheckHandle(_ context.Context, _ string) (bool, error) {
	return true, nil
}

// memStore is an in-memory cache store with copy-on-save semantics.
type memStore struct {
	mu    sync.Mutex
	recs  map[string]model.AccountCache
	saves int
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]model.AccountCache)}
}

func (m *memStore) Load(_ context.Context, account string) model.AccountCache {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[account]
	if !ok {
		return model.EmptyCache()
	}
	rec.Solved = rec.Solved.Clone()
	return rec
}

func (m *memStore) Save(_ context.Context, account string, cache model.AccountCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cache.Solved = cache.Solved.Clone()
	m.recs[account] = cache
	m.saves++
	return nil
}

func (m *memStore) Close() error { return nil }

func solvedSub(ts int64, contest int, index string, rating int, tags ...string) model.Submission {
	return model.Submission{
		CreationTime: ts,
		Verdict:      "OK",
		Problem:      model.Problem{ContestID: contest, Index: index, Rating: rating, Tags: tags},
	}
}

func newService(f *fakeFetcher, m *memStore, floor time.Time) *app.Service {
	return app.New(
		app.WithFetcher(f),
		app.WithStore(m),
		app.WithWorkerCeiling(3),
		app.WithGlobalFloor(floor),
	)
}

func TestService_Summarize(t *testing.T) {
	floor := time.Unix(100, 0).UTC()

	Convey("Given three accounts where one fails", t, func() {
		fetcher := newFakeFetcher()
		fetcher.subs["alice"] = []model.Submission{solvedSub(500, 1, "A", 800)}
		fetcher.subs["bob"] = []model.Submission{solvedSub(600, 2, "B", 1200)}
		fetcher.fail["broken"] = errors.New("connection timed out")
		svc := newService(fetcher, newMemStore(), floor)

		results, err := svc.Summarize(context.Background(), []string{"alice", "bob", "broken"}, nil)

		Convey("Then every account is accounted for", func() {
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 3)
		})

		Convey("And the failure is isolated to its own account", func() {
			So(results["broken"].Failed(), ShouldBeTrue)
			So(results["broken"].Err, ShouldContainSubstring, "connection timed out")
			So(results["alice"].Failed(), ShouldBeFalse)
			So(results["alice"].Summary.Problems, ShouldEqual, 1)
			So(results["bob"].Summary.Problems, ShouldEqual, 1)
		})
	})

	Convey("Given a handle requested several times", t, func() {
		fetcher := newFakeFetcher()
		fetcher.subs["alice"] = []model.Submission{solvedSub(500, 1, "A", 800)}
		svc := newService(fetcher, newMemStore(), floor)

		results, err := svc.Summarize(context.Background(), []string{"alice", "alice", "alice"}, nil)

		Convey("Then it is fetched exactly once", func() {
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 1)
			So(fetcher.calls["alice"], ShouldEqual, 1)
		})
	})

	Convey("Given an empty account list", t, func() {
		svc := newService(newFakeFetcher(), newMemStore(), floor)

		Convey("Then the batch is rejected eagerly", func() {
			_, err := svc.Summarize(context.Background(), nil, nil)
			So(errors.Is(err, app.ErrNoAccounts), ShouldBeTrue)
		})
	})

	Convey("Given a window that ends before it starts", t, func() {
		fetcher := newFakeFetcher()
		svc := newService(fetcher, newMemStore(), floor)
		bad := &app.Window{Start: time.Unix(2000, 0), End: time.Unix(1000, 0)}

		Convey("Then the batch fails before any fetch", func() {
			_, err := svc.Summarize(context.Background(), []string{"alice"}, bad)
			So(errors.Is(err, app.ErrInvalidWindow), ShouldBeTrue)
			So(fetcher.calls, ShouldBeEmpty)
		})
	})
}

func TestService_Incremental(t *testing.T) {
	floor := time.Unix(100, 0).UTC()

	Convey("Given an account with history around the floor", t, func() {
		fetcher := newFakeFetcher()
		fetcher.subs["alice"] = []model.Submission{
			solvedSub(500, 1, "A", 800),
			solvedSub(300, 2, "B", 0),
			{CreationTime: 200, Verdict: "WRONG_ANSWER", Problem: model.Problem{ContestID: 3, Index: "C"}},
			solvedSub(50, 4, "D", 1500),
		}
		store := newMemStore()
		svc := newService(fetcher, store, floor)

		result := svc.Process(context.Background(), "alice", nil)

		Convey("Then only accepted solves at or after the floor count", func() {
			So(result.Failed(), ShouldBeFalse)
			So(result.Summary.Problems, ShouldEqual, 2)
			So(result.Summary.RatedProblems, ShouldEqual, 1)
			So(result.Summary.AvgRating, ShouldEqual, 800.0)
		})

		Convey("And the first fetch is bounded by the floor", func() {
			So(fetcher.lastSince["alice"], ShouldEqual, floor.Unix()-1)
		})

		Convey("And the cache checkpoint advances to the newest submission", func() {
			So(store.recs["alice"].LastSeen, ShouldEqual, 500)
		})

		Convey("When processed again with no new submissions", func() {
			again := svc.Process(context.Background(), "alice", nil)

			Convey("Then the result is identical and the fetch starts at the checkpoint", func() {
				So(again.Summary, ShouldResemble, result.Summary)
				So(again.Solved, ShouldResemble, result.Solved)
				So(fetcher.lastSince["alice"], ShouldEqual, 500)
			})
		})

		Convey("When a later run sees a rating for an already-cached problem", func() {
			fetcher.mu.Lock()
			fetcher.subs["alice"] = append([]model.Submission{solvedSub(700, 2, "B", 1700)}, fetcher.subs["alice"]...)
			fetcher.mu.Unlock()

			again := svc.Process(context.Background(), "alice", nil)

			Convey("Then the unrated entry is upgraded without duplication", func() {
				So(again.Summary.Problems, ShouldEqual, 2)
				So(again.Solved[model.ProblemKey{ContestID: 2, Index: "B"}].Rating, ShouldEqual, 1700)
			})
		})
	})
}

func TestService_BoundedWindow(t *testing.T) {
	floor := time.Unix(100, 0).UTC()

	Convey("Given a one-day window", t, func() {
		window, err := app.ParseWindow("2025-11-01", "2025-11-01")
		So(err, ShouldBeNil)

		lastSecond := time.Date(2025, 11, 1, 23, 59, 59, 0, time.UTC).Unix()
		nextMidnight := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC).Unix()

		fetcher := newFakeFetcher()
		fetcher.subs["alice"] = []model.Submission{
			solvedSub(nextMidnight, 9, "Z", 2000),
			solvedSub(lastSecond, 1, "A", 800),
		}
		store := newMemStore()
		svc := newService(fetcher, store, floor)

		result := svc.Process(context.Background(), "alice", window)

		Convey("Then the last second of the end day is included", func() {
			So(result.Solved, ShouldContainKey, model.ProblemKey{ContestID: 1, Index: "A"})
		})

		Convey("And midnight after the end day is excluded", func() {
			So(result.Solved, ShouldNotContainKey, model.ProblemKey{ContestID: 9, Index: "Z"})
			So(result.Summary.Problems, ShouldEqual, 1)
		})

		Convey("And the cache is left untouched", func() {
			So(store.saves, ShouldEqual, 0)
		})
	})
}

func TestService_AggregateByPersons(t *testing.T) {
	floor := time.Unix(100, 0).UTC()

	Convey("Given two persons sharing one account", t, func() {
		fetcher := newFakeFetcher()
		fetcher.subs["alice_main"] = []model.Submission{solvedSub(500, 1, "A", 800), solvedSub(400, 2, "B", 0)}
		fetcher.subs["bob_main"] = []model.Submission{solvedSub(500, 2, "B", 1500), solvedSub(300, 3, "C", 2000)}
		fetcher.subs["shared"] = []model.Submission{solvedSub(450, 2, "B", 1500)}
		svc := newService(fetcher, newMemStore(), floor)

		persons := []aggregate.Person{
			{Name: "alice", Accounts: []string{"alice_main", "shared"}},
			{Name: "bob", Accounts: []string{"bob_main", "shared"}},
		}

		personAggs, global, err := svc.AggregateByPersons(context.Background(), persons, nil)

		Convey("Then the shared account is fetched once", func() {
			So(err, ShouldBeNil)
			So(fetcher.calls["shared"], ShouldEqual, 1)
		})

		Convey("And the global aggregate deduplicates across everyone", func() {
			So(global.Problems, ShouldEqual, 3)
			So(global.RatedProblems, ShouldEqual, 3)
		})

		Convey("And each person aggregates their own accounts", func() {
			So(personAggs, ShouldHaveLength, 2)
			So(personAggs[0].Name, ShouldEqual, "alice")
			So(personAggs[0].Problems, ShouldEqual, 2)
			So(personAggs[1].Problems, ShouldEqual, 2)
		})
	})
}
