package testutil

import (
	"cmp"
	"slices"
)

// SearchResult is one ground-truth neighbor.
type SearchResult struct {
	ID       uint32
	Distance float32
}

// ExactTopK brute-forces the k nearest accepted vectors to query under dist
// (smaller is closer). Ties go to the lower id, matching the index. A nil
// accept admits every vector.
func ExactTopK(query []float32, ids []uint32, vectors [][]float32, k int, dist func(a, b []float32) float32, accept func(i int) bool) []SearchResult {
	var all []SearchResult
	for i, vec := range vectors {
		if accept == nil || accept(i) {
			all = append(all, SearchResult{ID: ids[i], Distance: dist(query, vec)})
		}
	}
	slices.SortFunc(all, func(a, b SearchResult) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.ID, b.ID))
	})
	return all[:min(k, len(all))]
}

func IDs(results []SearchResult) []uint32 {
	ids := make([]uint32, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}
	return ids
}

// ComputeRecall is the fraction of groundTruth found in approximate. Two
// empty lists agree perfectly.
func ComputeRecall(groundTruth []SearchResult, approximate []uint32) float64 {
	if len(groundTruth) == 0 {
		if len(approximate) == 0 {
			return 1
		}
		return 0
	}

	hits := 0
	for _, r := range groundTruth {
		if slices.Contains(approximate, r.ID) {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}
