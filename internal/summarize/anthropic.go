package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicGenerator generates completions with the Anthropic Messages API.
type AnthropicGenerator struct {
	api       *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates a generator with the given API key and model.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *AnthropicGenerator {
	if apiKey != "" {
		opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicGenerator{
		api:       &client,
		model:     anthropic.Model(model),
		maxTokens: 256,
	}
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in API response")
	}
	return strings.TrimSpace(sb.String()), nil
}
