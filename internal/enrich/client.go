// Package enrich implements the LLM narrative layer. The model never
// computes figures; it only rewrites card copy and produces the coach
// narrative from precomputed results, and every round-trip is validated
// before any of its output is applied.
package enrich

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Generation is one model completion with its token usage.
type Generation struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// TextGenerator abstracts the model call so tests can substitute a canned
// completion.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (*Generation, error)
}

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicGenerator builds a generator; credentials come from the
// standard environment variables.
func NewAnthropicGenerator(model string, maxTokens int64, temperature float64) *AnthropicGenerator {
	return &AnthropicGenerator{
		client:      anthropic.NewClient(),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Generate sends one system+user exchange and concatenates the text blocks
// of the reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, system, prompt string) (*Generation, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(g.temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &EnrichError{Code: ErrModelTimeout, Message: "message request cancelled", Retryable: true, Cause: err}
		}
		return nil, &EnrichError{Code: ErrModelUnavailable, Message: "message request failed", Retryable: true, Cause: err}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, &EnrichError{Code: ErrEmptyCompletion, Message: "model returned no text blocks"}
	}
	return &Generation{
		Text:         text,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}
