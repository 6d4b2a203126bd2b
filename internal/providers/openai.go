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

const openaiDefaultBaseURL = "https://api.openai.com"

type openaiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIProvider talks to the standard OpenAI REST APIs.
type OpenAIProvider struct {
	cfg    openaiConfig
	dim    int
	client *http.Client
}

func newOpenAIProvider(cfg openaiConfig, dim int) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openaiDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIProvider{
		cfg:    cfg,
		dim:    dim,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIProvider) Info() ProviderInfo {
	return ProviderInfo{Name: "openai", Model: o.cfg.Model, Dimension: o.dim}
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateInputs(texts); err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(map[string]any{
		"model":      o.cfg.Model,
		"input":      texts,
		"dimensions": o.dim,
	})
	body, err := o.post(ctx, "/v1/embeddings", payload)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode openai embedding response: %w", err)
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.Embedding)
	}
	if err := checkDimensions("openai", out, o.dim, len(texts)); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": o.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a document retrieval assistant. Answer only from the provided context."},
			{"role": "user", "content": prompt},
		},
	})
	body, err := o.post(ctx, "/v1/chat/completions", payload)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode openai chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, transportError("openai", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, httpStatusError("openai", resp.StatusCode, body)
	}
	return body, nil
}
