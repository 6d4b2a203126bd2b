package providers

import (
	"context"
	"math"
	"testing"

	"docrag/internal/util"

	"github.com/stretchr/testify/require"
)

func TestFactoryBuildsMock(t *testing.T) {
	p, err := NewEmbeddingProvider("mock", nil, 64)
	require.NoError(t, err)
	require.Equal(t, "mock", p.Info().Name)
	require.Equal(t, 64, p.Info().Dimension)
}

func TestFactoryRejectsMissingRequiredKeys(t *testing.T) {
	_, err := NewEmbeddingProvider("openai", map[string]string{"model": "text-embedding-3-small"}, 1536)
	require.True(t, util.IsValidation(err), "missing api_key should be a validation error, got %v", err)

	_, err = NewEmbeddingProvider("openai", map[string]string{"api_key": "sk-test"}, 1536)
	require.True(t, util.IsValidation(err), "missing model should be a validation error, got %v", err)

	_, err = NewEmbeddingProvider("ollama", map[string]string{}, 768)
	require.True(t, util.IsValidation(err), "missing model should be a validation error, got %v", err)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := NewEmbeddingProvider("cohere", map[string]string{}, 1536)
	require.True(t, util.IsValidation(err))
	_, err = NewLLMProvider("cohere", map[string]string{})
	require.True(t, util.IsValidation(err))
}

func TestFactoryRejectsBadDimension(t *testing.T) {
	_, err := NewEmbeddingProvider("mock", nil, 0)
	require.True(t, util.IsValidation(err))
}

func TestMockEmbedDeterministic(t *testing.T) {
	p := NewMockProvider(32)
	a, err := p.Embed(context.Background(), "same input")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "same input")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 32)

	c, err := p.Embed(context.Background(), "different input")
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestMockEmbedBatchShape(t *testing.T) {
	p := NewMockProvider(16)
	vecs, err := p.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		require.Len(t, v, 16)
	}
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	p := NewMockProvider(16)
	_, err := p.Embed(context.Background(), "   ")
	require.True(t, util.IsValidation(err))
	_, err = p.EmbedBatch(context.Background(), nil)
	require.True(t, util.IsValidation(err))
	_, err = p.EmbedBatch(context.Background(), []string{"ok", ""})
	require.True(t, util.IsValidation(err))
}

func TestMockVectorsAreUnitNorm(t *testing.T) {
	p := NewMockProvider(64)
	for _, text := range []string{"alpha", "beta", "a longer piece of text"} {
		vec, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		require.InDelta(t, 1.0, math.Sqrt(sum), 1e-3, "text %q", text)
	}
}
