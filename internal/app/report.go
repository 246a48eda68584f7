package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/okian/cfstat/internal/domain/aggregate"
	"github.com/okian/cfstat/internal/domain/model"
)

// Report is the renderable batch outcome: per-account rows in request order
// plus the globally deduplicated aggregate.
type Report struct {
	Accounts []Result
	Global   aggregate.Aggregate
}

// BuildReport assembles a Report from batch results. order fixes the row
// order; accounts missing from results are skipped.
func BuildReport(results map[string]Result, order []string) Report {
	rep := Report{Accounts: make([]Result, 0, len(results))}
	for _, account := range dedupeAccounts(order) {
		r, ok := results[account]
		if !ok {
			continue
		}
		rep.Accounts = append(rep.Accounts, r)
	}

	// Global union in row order; failed accounts contribute nothing.
	global := make(model.SolvedSet)
	for _, r := range rep.Accounts {
		if r.Failed() {
			continue
		}
		global.MergeAll(r.Solved)
	}
	rep.Global = aggregate.FromSet(global)
	return rep
}

// Render writes a plain-text table of the report.
func (rep Report) Render(w io.Writer) error {
	width := len("handle")
	for _, r := range rep.Accounts {
		if len(r.Account) > width {
			width = len(r.Account)
		}
	}

	header := fmt.Sprintf("%-*s | problems | rated | avg_rating", width, "handle")
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for i := 0; i < len(header); i++ {
		if _, err := io.WriteString(w, "-"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	for _, r := range rep.Accounts {
		if r.Failed() {
			if _, err := fmt.Fprintf(w, "%-*s | ERROR: %s\n", width, r.Account, r.Err); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%-*s | %8d | %5d | %10.2f\n",
			width, r.Account, r.Summary.Problems, r.Summary.RatedProblems, r.Summary.AvgRating); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\nAggregated (deduplicated across accounts):\n  unique problems: %d\n  rated problems:  %d\n  average rating:  %.2f\n",
		rep.Global.Problems, rep.Global.RatedProblems, rep.Global.AvgRating)
	return err
}

// WriteCSV writes the report as CSV rows: one per account, then the global
// aggregate.
func (rep Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"handle", "problems", "rated_problems", "avg_rating"}); err != nil {
		return err
	}
	for _, r := range rep.Accounts {
		if r.Failed() {
			if err := cw.Write([]string{r.Account, "ERROR", "", ""}); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write([]string{
			r.Account,
			strconv.Itoa(r.Summary.Problems),
			strconv.Itoa(r.Summary.RatedProblems),
			fmt.Sprintf("%.2f", r.Summary.AvgRating),
		}); err != nil {
			return err
		}
	}

	if err := cw.Write(nil); err != nil {
		return err
	}
	if err := cw.Write([]string{"aggregated"}); err != nil {
		return err
	}
	if err := cw.Write([]string{"unique_problems", strconv.Itoa(rep.Global.Problems)}); err != nil {
		return err
	}
	if err := cw.Write([]string{"average_rating", fmt.Sprintf("%.2f", rep.Global.AvgRating)}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// RatingBuckets returns the global rating histogram as sorted (rating, count)
// pairs for stable rendering.
func (rep Report) RatingBuckets() [][2]int {
	out := make([][2]int, 0, len(rep.Global.RatingHistogram))
	for rating, count := range rep.Global.RatingHistogram {
		out = append(out, [2]int{rating, count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
