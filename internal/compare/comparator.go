package compare

import (
	"sort"

	"github.com/ashita-ai/kanshi/internal/model"
)

// MinComparable is the number of succeeded runs a comparison needs.
const MinComparable = 2

// RunStats summarizes the size of one run's change set.
type RunStats struct {
	FilesChanged int `json:"files_changed"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// Stats sums the per-file counters of a run. A run with no files yields zeros.
func Stats(run model.Run) RunStats {
	s := RunStats{FilesChanged: len(run.FilesChanged)}
	for _, f := range run.FilesChanged {
		s.LinesAdded += f.Additions
		s.LinesRemoved += f.Deletions
	}
	return s
}

// LatestSucceededByExecutor returns, for each executor, its most recent
// succeeded run. Ties on CreatedAt keep the earlier input position.
func LatestSucceededByExecutor(runs []model.Run) map[string]model.Run {
	sorted := make([]model.Run, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	latest := make(map[string]model.Run)
	for _, r := range sorted {
		if r.Status != model.RunStatusSucceeded {
			continue
		}
		if _, seen := latest[r.Executor]; seen {
			continue
		}
		latest[r.Executor] = r
	}
	return latest
}

// Comparable returns the succeeded runs in input order.
func Comparable(runs []model.Run) []model.Run {
	out := make([]model.Run, 0, len(runs))
	for _, r := range runs {
		if r.Status == model.RunStatusSucceeded {
			out = append(out, r)
		}
	}
	return out
}

// CanCompare reports whether at least two runs succeeded.
func CanCompare(runs []model.Run) bool {
	return len(Comparable(runs)) >= MinComparable
}

// Options controls which runs Compare puts side by side.
type Options struct {
	// LatestOnly keeps one run per executor, the most recent succeeded one.
	LatestOnly bool
}

// RunSummary pairs a run with its stats.
type RunSummary struct {
	Run   model.Run `json:"run"`
	Stats RunStats  `json:"stats"`
}

// Comparison is the full side-by-side view of a set of runs.
type Comparison struct {
	Runs    []RunSummary `json:"runs"`
	Overlap Overlap      `json:"overlap"`
}

// Compare selects the comparable runs, computes stats for each, and analyzes
// their overlap. It returns false when fewer than two runs qualify; callers
// must not render a comparison in that case.
//
// With LatestOnly the selected runs are ordered by executor name; otherwise
// input order is kept.
func Compare(runs []model.Run, opts Options) (Comparison, bool) {
	var selected []model.Run
	if opts.LatestOnly {
		latest := LatestSucceededByExecutor(runs)
		executors := make([]string, 0, len(latest))
		for name := range latest {
			executors = append(executors, name)
		}
		sort.Strings(executors)
		for _, name := range executors {
			selected = append(selected, latest[name])
		}
	} else {
		selected = Comparable(runs)
	}

	if !CanCompare(selected) {
		return Comparison{}, false
	}

	c := Comparison{Runs: make([]RunSummary, 0, len(selected))}
	for _, r := range selected {
		c.Runs = append(c.Runs, RunSummary{Run: r, Stats: Stats(r)})
	}
	c.Overlap = Analyze(selected)
	return c, true
}
