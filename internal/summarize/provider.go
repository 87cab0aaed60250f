package summarize

import (
	"context"
	"fmt"
)

// Provider names an LLM backend.
type Provider string

const (
	ProviderNone      Provider = "none"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
)

// Providers lists the providers that can generate summaries.
func Providers() []Provider {
	return []Provider{ProviderAnthropic, ProviderGemini, ProviderOpenAI}
}

// ProviderConfig selects and configures a Generator.
type ProviderConfig struct {
	Provider Provider
	Model    string
	APIKey   string
}

// NewGenerator builds the Generator for cfg.Provider.
func NewGenerator(ctx context.Context, cfg ProviderConfig) (Generator, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not set")
		}
		return NewAnthropic(cfg.APIKey, cfg.Model), nil
	case ProviderGemini:
		return NewGemini(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key not set")
		}
		return NewOpenAI(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown summarization provider: %s (use: anthropic, gemini, openai)", cfg.Provider)
	}
}
