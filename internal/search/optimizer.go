package search

import (
	"sort"
	"strings"

	"docrag/internal/models"
)

const (
	contextSeparator = "\n\n"
	ellipsis         = "..."

	// truncateMinBudget is the smallest leftover budget worth filling with a
	// partial chunk; below it the tail chunk is dropped instead.
	truncateMinBudget = 100
)

// OptimizeContext selects the highest-scoring chunks whose joined content
// fits within maxChars runes (separators counted) and returns them. Chunks
// are taken greedily by score; only the final kept chunk may have its
// content truncated, marked with a trailing ellipsis. Callers cite exactly
// what came back: a chunk absent from the returned slice contributed
// nothing to the context.
func OptimizeContext(results []models.SearchResult, maxChars int) []models.SearchResult {
	if maxChars <= 0 || len(results) == 0 {
		return nil
	}
	sorted := make([]models.SearchResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]models.SearchResult, 0, len(sorted))
	used := 0
	for _, r := range sorted {
		runes := []rune(r.Content)
		sep := 0
		if len(kept) > 0 {
			sep = len(contextSeparator)
		}
		if used+sep+len(runes) <= maxChars {
			kept = append(kept, r)
			used += sep + len(runes)
			continue
		}
		remaining := maxChars - used - sep
		if remaining > truncateMinBudget {
			r.Content = strings.TrimSpace(string(runes[:remaining])) + ellipsis
			kept = append(kept, r)
		}
		break
	}
	return kept
}

// JoinContext assembles the optimized chunks into a single prompt context.
func JoinContext(results []models.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, contextSeparator)
}
