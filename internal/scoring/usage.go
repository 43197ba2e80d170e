package scoring

import (
	"slices"

	"github.com/ahrav/go-qra/internal/domain"
)

// DatasetUsage counts the distinct items judged from each dataset, sorted
// by dataset name.
func DatasetUsage(judgments []domain.Judgment) []domain.DatasetUsage {
	items := make(map[string]map[int]struct{})
	for _, j := range judgments {
		set, ok := items[j.Dataset]
		if !ok {
			set = make(map[int]struct{})
			items[j.Dataset] = set
		}
		set[j.DatasetIndex] = struct{}{}
	}

	out := make([]domain.DatasetUsage, 0, len(items))
	for name, set := range items {
		out = append(out, domain.DatasetUsage{Dataset: name, Items: len(set)})
	}
	slices.SortFunc(out, func(a, b domain.DatasetUsage) int {
		switch {
		case a.Dataset < b.Dataset:
			return -1
		case a.Dataset > b.Dataset:
			return 1
		}
		return 0
	})
	return out
}
