package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator generates completions with the OpenAI chat API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a generator with the given API key and model.
func NewOpenAI(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	if apiKey != "" {
		opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...), model: model}
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(200),
		Temperature: openai.Float(0.5),
	})
	if err != nil {
		return "", fmt.Errorf("openai API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
