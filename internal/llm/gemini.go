package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient implements Client using the Google GenAI API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

func (c *GeminiClient) Name() string {
	return "Google Gemini"
}

func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error) {
	o := ApplyOptions(opts...)
	gcfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       o.Temperature,
	}
	if n := o.MaxTokens; n > 0 {
		gcfg.MaxOutputTokens = int32(n)
	} else if c.maxTokens > 0 {
		gcfg.MaxOutputTokens = int32(c.maxTokens)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), gcfg)
	observe(c.Name(), start, err)
	if err != nil {
		slog.Error("llm: gemini call failed", "model", c.model, "duration", time.Since(start), "error", err)
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}
	return text, nil
}
