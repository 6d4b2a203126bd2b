package providers

import (
	"context"
	"strings"

	"docrag/internal/util"
)

type ProviderInfo struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension,omitempty"`
}

// EmbeddingProvider produces fixed-dimension vectors. EmbedBatch returns
// exactly one vector per input, in order, or an error for the whole batch.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Info() ProviderInfo
}

type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Info() ProviderInfo
}

func validateInputs(texts []string) error {
	if len(texts) == 0 {
		return util.Invalidf("inputs", "no texts to embed")
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return util.Invalidf("inputs", "text %d is empty", i)
		}
	}
	return nil
}

// checkDimensions rejects backend responses whose shape does not match the
// request. A wrong vector length is permanent: re-sending the same request
// to the same model cannot change it.
func checkDimensions(provider string, vectors [][]float32, want, inputs int) error {
	if len(vectors) != inputs {
		return &util.ProviderError{Provider: provider, Retryable: false,
			Err: util.Invalidf("vectors", "got %d vectors for %d inputs", len(vectors), inputs)}
	}
	for i, v := range vectors {
		if len(v) != want {
			return &util.ProviderError{Provider: provider, Retryable: false,
				Err: util.Invalidf("dimension", "vector %d has %d dimensions, want %d", i, len(v), want)}
		}
	}
	return nil
}
