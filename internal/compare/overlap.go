// Package compare analyzes the changes made by several runs of the same
// task: which files every run touched, which files only one run touched, and
// which runs are worth putting side by side at all.
package compare

import (
	"sort"

	"github.com/ashita-ai/kanshi/internal/model"
)

// Overlap partitions the union of files touched by a set of runs.
//
// A path is in exactly one of: CommonFiles, one run's UniqueFiles list, or
// neither (touched by more than one run but not all of them). With a single
// run every file is common and its unique list is empty.
type Overlap struct {
	AllFiles    []string            `json:"all_files"`
	CommonFiles []string            `json:"common_files"`
	UniqueFiles map[string][]string `json:"unique_files"`
}

// Analyze computes the file overlap across runs. Runs without files (anything
// that did not succeed) contribute an empty set, which empties CommonFiles.
func Analyze(runs []model.Run) Overlap {
	out := Overlap{
		AllFiles:    []string{},
		CommonFiles: []string{},
		UniqueFiles: make(map[string][]string, len(runs)),
	}
	if len(runs) == 0 {
		return out
	}

	sets := make([]map[string]struct{}, len(runs))
	union := make(map[string]struct{})
	for i, r := range runs {
		set := make(map[string]struct{}, len(r.FilesChanged))
		for _, f := range r.FilesChanged {
			set[f.Path] = struct{}{}
			union[f.Path] = struct{}{}
		}
		sets[i] = set
	}

	out.AllFiles = sortedKeys(union)

	for _, path := range out.AllFiles {
		inAll := true
		for _, set := range sets {
			if _, ok := set[path]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out.CommonFiles = append(out.CommonFiles, path)
		}
	}

	for i, r := range runs {
		unique := []string{}
		if len(runs) > 1 {
			for _, path := range sortedKeys(sets[i]) {
				if !inOtherSet(sets, i, path) {
					unique = append(unique, path)
				}
			}
		}
		// Duplicate run IDs share one entry; the later run's list wins.
		out.UniqueFiles[r.ID] = unique
	}
	return out
}

// Shared returns the paths touched by more than one run but not by all of
// them, sorted. These appear in neither CommonFiles nor any UniqueFiles list.
func (o Overlap) Shared() []string {
	skip := make(map[string]struct{}, len(o.AllFiles))
	for _, p := range o.CommonFiles {
		skip[p] = struct{}{}
	}
	for _, files := range o.UniqueFiles {
		for _, p := range files {
			skip[p] = struct{}{}
		}
	}
	shared := []string{}
	for _, p := range o.AllFiles {
		if _, ok := skip[p]; !ok {
			shared = append(shared, p)
		}
	}
	return shared
}

func inOtherSet(sets []map[string]struct{}, self int, path string) bool {
	for j, set := range sets {
		if j == self {
			continue
		}
		if _, ok := set[path]; ok {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
