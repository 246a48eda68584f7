// Package model contains domain types shared between the fetch, cache and
// aggregation layers.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// VerdictOK is the only verdict that counts as a solve.
const VerdictOK = "OK"

// CacheVersion is the current on-disk cache record format version. Records
// carrying any other version are reset to empty on load.
const CacheVersion = 2

// Problem describes a judge problem as returned by the submissions endpoint.
// ContestID of zero means the problem carries no contest id; Rating of zero
// means the problem is unrated.
type Problem struct {
	ContestID int      `json:"contestId,omitempty"`
	Index     string   `json:"index"`
	Rating    int      `json:"rating,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Key returns the canonical dedup key for the problem.
func (p Problem) Key() ProblemKey {
	return ProblemKey{ContestID: p.ContestID, Index: p.Index}
}

// Submission is one submission record from the judge API.
type Submission struct {
	ID           int64   `json:"id"`
	CreationTime int64   `json:"creationTimeSeconds"`
	Verdict      string  `json:"verdict"`
	Problem      Problem `json:"problem"`
}

// Solved reports whether the submission is an accepted solve.
func (s Submission) Solved() bool { return s.Verdict == VerdictOK }

// ProblemKey identifies a problem by (contestId, index). It is a comparable
// value type so it can key maps directly; the string form is used only at
// storage and report boundaries.
type ProblemKey struct {
	ContestID int
	Index     string
}

// String encodes the key as "<contestId>:<index>".
func (k ProblemKey) String() string {
	return strconv.Itoa(k.ContestID) + ":" + k.Index
}

// ParseKey decodes a key previously encoded by String.
func ParseKey(s string) (ProblemKey, error) {
	id, index, ok := strings.Cut(s, ":")
	if !ok {
		return ProblemKey{}, fmt.Errorf("malformed problem key %q", s)
	}
	contestID, err := strconv.Atoi(id)
	if err != nil {
		return ProblemKey{}, fmt.Errorf("malformed problem key %q: %w", s, err)
	}
	return ProblemKey{ContestID: contestID, Index: index}, nil
}

// SolvedEntry holds what is known about one solved problem.
type SolvedEntry struct {
	Rating int      `json:"rating,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// MergeRating combines a previously known rating with a newly observed one.
// A known (non-zero) rating is never overwritten; an unknown one takes any
// non-zero value offered later. This is the single merge rule all dedup paths
// go through so the result does not depend on iteration order.
func MergeRating(old, observed int) int {
	if old != 0 {
		return old
	}
	return observed
}

// SolvedSet maps problems to what is known about them.
type SolvedSet map[ProblemKey]SolvedEntry

// Merge folds entry into the set under key, applying MergeRating and keeping
// the first non-empty tag list seen.
func (s SolvedSet) Merge(key ProblemKey, entry SolvedEntry) {
	prev, ok := s[key]
	if !ok {
		s[key] = entry
		return
	}
	prev.Rating = MergeRating(prev.Rating, entry.Rating)
	if len(prev.Tags) == 0 {
		prev.Tags = entry.Tags
	}
	s[key] = prev
}

// MergeAll folds every entry of other into the set.
func (s SolvedSet) MergeAll(other SolvedSet) {
	for k, e := range other {
		s.Merge(k, e)
	}
}

// Clone returns a shallow copy of the set.
func (s SolvedSet) Clone() SolvedSet {
	out := make(SolvedSet, len(s))
	for k, e := range s {
		out[k] = e
	}
	return out
}

// Encode converts the set to its string-keyed form for storage.
func (s SolvedSet) Encode() map[string]SolvedEntry {
	out := make(map[string]SolvedEntry, len(s))
	for k, e := range s {
		out[k.String()] = e
	}
	return out
}

// DecodeSolvedSet rebuilds a SolvedSet from its string-keyed storage form.
func DecodeSolvedSet(raw map[string]SolvedEntry) (SolvedSet, error) {
	out := make(SolvedSet, len(raw))
	for ks, e := range raw {
		k, err := ParseKey(ks)
		if err != nil {
			return nil, err
		}
		out[k] = e
	}
	return out, nil
}

// AccountCache is the persisted per-account incremental record.
// LastSeen is the newest submission creation timestamp already folded into
// Solved; zero means the account was never fetched.
type AccountCache struct {
	Version  int       `json:"version"`
	LastSeen int64     `json:"last_seen"`
	Solved   SolvedSet `json:"-"`
}

// EmptyCache returns a fresh cache record at the current format version.
func EmptyCache() AccountCache {
	return AccountCache{Version: CacheVersion, Solved: make(SolvedSet)}
}

// AccountSummary is the derived per-account statistic set.
type AccountSummary struct {
	Problems      int     `json:"problems"`
	RatedProblems int     `json:"rated_problems"`
	AvgRating     float64 `json:"avg_rating"`
}

// Summarize derives an AccountSummary from a solved set.
func Summarize(solved SolvedSet) AccountSummary {
	sum := AccountSummary{Problems: len(solved)}
	total := 0
	for _, e := range solved {
		if e.Rating != 0 {
			sum.RatedProblems++
			total += e.Rating
		}
	}
	if sum.RatedProblems > 0 {
		sum.AvgRating = float64(total) / float64(sum.RatedProblems)
	}
	return sum
}
