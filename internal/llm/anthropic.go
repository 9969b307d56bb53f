package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel     = anthropic.ModelClaudeHaiku4_5_20251001
	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient implements Client using the Anthropic messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewAnthropicClient(cfg Config) *AnthropicClient {
	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *AnthropicClient) Name() string {
	return "Anthropic Claude"
}

func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error) {
	o := ApplyOptions(opts...)
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if o.MaxTokens > 0 {
		params.MaxTokens = int64(o.MaxTokens)
	}
	if o.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*o.Temperature))
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	observe(c.Name(), start, err)
	duration := time.Since(start)
	if err != nil {
		slog.Error("llm: anthropic call failed", "model", c.model, "duration", duration, "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	slog.Debug("llm: anthropic call completed", "duration", duration, "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}
