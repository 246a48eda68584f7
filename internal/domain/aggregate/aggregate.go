// Package aggregate merges per-account solved sets into person-level and
// global deduplicated statistics.
package aggregate

import (
	"github.com/okian/cfstat/internal/domain/model"
)

// Person names a group of accounts believed to belong to one individual.
type Person struct {
	Name     string   `json:"name" koanf:"name"`
	Accounts []string `json:"accounts" koanf:"accounts"`
}

// AccountStatus reports one account's contribution to a person aggregate.
// Failed accounts contribute nothing but stay listed so callers can render a
// per-account error and offer a retry.
type AccountStatus struct {
	Handle string `json:"handle"`
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Aggregate holds deduplicated statistics for a set of problems.
type Aggregate struct {
	Problems        int            `json:"problems"`
	RatedProblems   int            `json:"rated_problems"`
	AvgRating       float64        `json:"avg_rating"`
	RatingHistogram map[int]int    `json:"rating_histogram"`
	TagHistogram    map[string]int `json:"tag_histogram"`
}

// PersonAggregate is the per-person view plus the accounts it was built from.
type PersonAggregate struct {
	Name     string          `json:"name"`
	Accounts []AccountStatus `json:"accounts"`
	Aggregate
}

// Union merges solved sets in order into a fresh set. First-seen-wins per
// key, with the rating merge rule upgrading unknown ratings to known ones.
func Union(sets ...model.SolvedSet) model.SolvedSet {
	out := make(model.SolvedSet)
	for _, s := range sets {
		out.MergeAll(s)
	}
	return out
}

// FromSet derives an Aggregate from a deduplicated solved set.
func FromSet(set model.SolvedSet) Aggregate {
	agg := Aggregate{
		Problems:        len(set),
		RatingHistogram: make(map[int]int),
		TagHistogram:    make(map[string]int),
	}

	total := 0
	for _, e := range set {
		if e.Rating != 0 {
			agg.RatedProblems++
			total += e.Rating
			agg.RatingHistogram[e.Rating]++
		}
		// A problem with N distinct tags increments N buckets by one each.
		seen := make(map[string]struct{}, len(e.Tags))
		for _, tag := range e.Tags {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			agg.TagHistogram[tag]++
		}
	}
	if agg.RatedProblems > 0 {
		agg.AvgRating = float64(total) / float64(agg.RatedProblems)
	}
	return agg
}

// ByPersons builds one aggregate per person and a global aggregate across all
// persons. solved maps account handle to its deduplicated solved set; failed
// maps handles whose fetch failed to a human-readable message. An account in
// neither map simply contributes nothing.
func ByPersons(persons []Person, solved map[string]model.SolvedSet, failed map[string]string) ([]PersonAggregate, Aggregate) {
	out := make([]PersonAggregate, 0, len(persons))
	global := make(model.SolvedSet)

	for _, p := range persons {
		union := make(model.SolvedSet)
		statuses := make([]AccountStatus, 0, len(p.Accounts))

		for _, handle := range p.Accounts {
			if msg, ok := failed[handle]; ok {
				statuses = append(statuses, AccountStatus{Handle: handle, Failed: true, Error: msg})
				continue
			}
			statuses = append(statuses, AccountStatus{Handle: handle})
			union.MergeAll(solved[handle])
		}

		global.MergeAll(union)
		out = append(out, PersonAggregate{
			Name:      p.Name,
			Accounts:  statuses,
			Aggregate: FromSet(union),
		})
	}

	return out, FromSet(global)
}

// Global unions every account's solved set when no person grouping is used.
func Global(solved map[string]model.SolvedSet, order []string) Aggregate {
	union := make(model.SolvedSet)
	for _, handle := range order {
		union.MergeAll(solved[handle])
	}
	return FromSet(union)
}
