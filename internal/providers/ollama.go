package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ollamaConfig struct {
	BaseURL string
	Model   string
}

// OllamaProvider supports local, free embeddings and generation via Ollama.
// Example embedding model: nomic-embed-text.
type OllamaProvider struct {
	cfg    ollamaConfig
	dim    int
	client *http.Client
}

func newOllamaProvider(cfg ollamaConfig, dim int) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OllamaProvider{
		cfg:    cfg,
		dim:    dim,
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

func (o *OllamaProvider) Info() ProviderInfo {
	return ProviderInfo{Name: "ollama", Model: o.cfg.Model, Dimension: o.dim}
}

func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch issues one request per input; the Ollama embeddings endpoint
// takes a single prompt at a time.
func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateInputs(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		payload, _ := json.Marshal(map[string]any{
			"model":  o.cfg.Model,
			"prompt": text,
		})
		body, err := o.post(ctx, "/api/embeddings", payload)
		if err != nil {
			return nil, err
		}
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode ollama embedding response: %w", err)
		}
		out = append(out, parsed.Embedding)
	}
	if err := checkDimensions("ollama", out, o.dim, len(texts)); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"model":  o.cfg.Model,
		"prompt": prompt,
		"stream": false,
	})
	body, err := o.post(ctx, "/api/generate", payload)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode ollama generate response: %w", err)
	}
	return parsed.Response, nil
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, transportError("ollama", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, httpStatusError("ollama", resp.StatusCode, body)
	}
	return body, nil
}
