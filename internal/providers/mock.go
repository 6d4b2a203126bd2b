package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider returns deterministic vectors and canned answers so the whole
// pipeline can run without any external backend.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Info() ProviderInfo {
	return ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", m.dim), Dimension: m.dim}
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	_ = ctx
	if err := validateInputs(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vectors = append(vectors, deterministicVector(t, m.dim))
	}
	return vectors, nil
}

func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	_ = ctx
	b := strings.Builder{}
	b.WriteString("Deterministic answer based on retrieved context.")
	if strings.Contains(strings.ToLower(prompt), "context:") {
		b.WriteString(" The provided context was used.")
	}
	return b.String(), nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
	return v
}
