package search

import (
	"strings"
	"testing"

	"docrag/internal/models"

	"github.com/stretchr/testify/require"
)

func chunkOf(score float64, content string) models.SearchResult {
	return models.SearchResult{ChunkID: content[:min(len(content), 8)], Content: content, Score: score}
}

func TestOptimizeContextAllFit(t *testing.T) {
	results := []models.SearchResult{
		chunkOf(0.5, "second chunk"),
		chunkOf(0.9, "first chunk"),
		chunkOf(0.1, "third chunk"),
	}
	kept := OptimizeContext(results, 1000)
	require.Len(t, kept, 3)
	require.Equal(t, "first chunk\n\nsecond chunk\n\nthird chunk", JoinContext(kept))
}

func TestOptimizeContextTruncatesTail(t *testing.T) {
	big := strings.Repeat("a", 400)
	results := []models.SearchResult{
		chunkOf(0.9, strings.Repeat("x", 200)),
		chunkOf(0.5, big),
	}
	kept := OptimizeContext(results, 350)
	require.Len(t, kept, 2)
	require.Equal(t, strings.Repeat("x", 200), kept[0].Content)
	require.True(t, strings.HasSuffix(kept[1].Content, "..."))
	out := JoinContext(kept)
	require.LessOrEqual(t, len([]rune(out)), 350+len("..."))
}

func TestOptimizeContextDropsTailWhenBudgetTooSmall(t *testing.T) {
	results := []models.SearchResult{
		chunkOf(0.9, strings.Repeat("x", 200)),
		chunkOf(0.5, strings.Repeat("a", 400)),
	}
	// 50 leftover runes after the first chunk: below the truncation floor.
	kept := OptimizeContext(results, 250)
	require.Len(t, kept, 1)
	require.Equal(t, strings.Repeat("x", 200), kept[0].Content)
}

func TestOptimizeContextEmptyInputs(t *testing.T) {
	require.Empty(t, OptimizeContext(nil, 1000))
	require.Empty(t, OptimizeContext([]models.SearchResult{chunkOf(0.5, "x")}, 0))
	require.Empty(t, OptimizeContext([]models.SearchResult{chunkOf(0.5, "x")}, -10))
	require.Equal(t, "", JoinContext(nil))
}

func TestOptimizeContextSingleOversizeChunk(t *testing.T) {
	results := []models.SearchResult{chunkOf(0.9, strings.Repeat("b", 500))}
	kept := OptimizeContext(results, 200)
	require.Len(t, kept, 1)
	require.True(t, strings.HasSuffix(kept[0].Content, "..."))
	require.LessOrEqual(t, len([]rune(kept[0].Content)), 200+len("..."))
}

func TestOptimizeContextBudgetNeverExceeded(t *testing.T) {
	results := []models.SearchResult{
		chunkOf(0.9, strings.Repeat("a", 150)),
		chunkOf(0.8, strings.Repeat("b", 150)),
		chunkOf(0.7, strings.Repeat("c", 150)),
	}
	for _, budget := range []int{120, 200, 320, 1000} {
		out := JoinContext(OptimizeContext(results, budget))
		require.LessOrEqual(t, len([]rune(out)), budget+len("..."), "budget %d", budget)
	}
}

// A chunk excluded from the context must not appear in the returned slice,
// so callers citing the result set cannot cite content the prompt never saw.
func TestOptimizeContextKeptMatchesContext(t *testing.T) {
	results := make([]models.SearchResult, 0, 10)
	for i := 0; i < 10; i++ {
		results = append(results, models.SearchResult{
			ChunkID: strings.Repeat(string(rune('a'+i)), 4),
			Content: strings.Repeat(string(rune('a'+i)), 400),
			Score:   1.0 - float64(i)*0.05,
		})
	}
	kept := OptimizeContext(results, 1000)
	require.Len(t, kept, 3)
	require.True(t, strings.HasSuffix(kept[2].Content, "..."))
	out := JoinContext(kept)
	for _, r := range kept {
		require.Contains(t, out, strings.TrimSuffix(r.Content, "..."))
	}
	for _, r := range results[len(kept):] {
		require.NotContains(t, out, r.Content[:4]+r.Content[:4])
	}
}
