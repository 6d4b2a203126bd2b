package providers

import (
	"strings"

	"docrag/internal/config"
	"docrag/internal/util"
)

// requiredKeys lists the config entries each provider cannot start without.
// Validation happens here, before construction, so a misconfigured provider
// fails at startup rather than mid-ingestion.
var requiredKeys = map[string][]string{
	"mock":   {},
	"openai": {"api_key", "model"},
	"ollama": {"model"},
}

func validateProviderConfig(name string, cfg map[string]string) error {
	keys, ok := requiredKeys[name]
	if !ok {
		return util.Invalidf("provider", "unsupported provider %q", name)
	}
	for _, k := range keys {
		if strings.TrimSpace(cfg[k]) == "" {
			return util.Invalidf("provider_config", "%s requires %q", name, k)
		}
	}
	return nil
}

// NewEmbeddingProvider builds the named provider from a raw config map. The
// map is converted to a typed config here; nothing downstream sees it.
func NewEmbeddingProvider(name string, cfg map[string]string, dim int) (EmbeddingProvider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := validateProviderConfig(name, cfg); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, util.Invalidf("dimension", "must be positive, got %d", dim)
	}
	switch name {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return newOpenAIProvider(openaiConfig{
			APIKey:  cfg["api_key"],
			Model:   cfg["model"],
			BaseURL: cfg["base_url"],
		}, dim), nil
	case "ollama":
		return newOllamaProvider(ollamaConfig{
			BaseURL: cfg["base_url"],
			Model:   cfg["model"],
		}, dim), nil
	default:
		return nil, util.Invalidf("provider", "unsupported provider %q", name)
	}
}

func NewLLMProvider(name string, cfg map[string]string) (LLMProvider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := validateProviderConfig(name, cfg); err != nil {
		return nil, err
	}
	switch name {
	case "mock":
		return NewMockProvider(0), nil
	case "openai":
		return newOpenAIProvider(openaiConfig{
			APIKey:  cfg["api_key"],
			Model:   cfg["model"],
			BaseURL: cfg["base_url"],
		}, 0), nil
	case "ollama":
		return newOllamaProvider(ollamaConfig{
			BaseURL: cfg["base_url"],
			Model:   cfg["model"],
		}, 0), nil
	default:
		return nil, util.Invalidf("provider", "unsupported provider %q", name)
	}
}

// EmbeddingFromConfig assembles the raw config map for the configured
// embedding provider from process configuration.
func EmbeddingFromConfig(cfg config.Config) (EmbeddingProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.EmbedProvider))
	return NewEmbeddingProvider(name, providerConfigMap(name, cfg, cfg.EmbedModel, "text-embedding-3-small", "nomic-embed-text"), cfg.EmbedDim)
}

func LLMFromConfig(cfg config.Config) (LLMProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	return NewLLMProvider(name, providerConfigMap(name, cfg, cfg.LLMModel, "gpt-4o-mini", "llama3.1"))
}

func providerConfigMap(name string, cfg config.Config, model, openaiDefault, ollamaDefault string) map[string]string {
	switch name {
	case "openai":
		if model == "" {
			model = openaiDefault
		}
		return map[string]string{"api_key": cfg.OpenAIAPIKey, "model": model}
	case "ollama":
		if model == "" {
			model = ollamaDefault
		}
		return map[string]string{"base_url": cfg.OllamaBaseURL, "model": model}
	default:
		return map[string]string{}
	}
}
