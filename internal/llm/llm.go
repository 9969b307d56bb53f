package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"

	// StaticName is reported when no provider is configured.
	StaticName = "Sistema Básico"
)

// ErrNotConfigured is returned by every call on a client without a provider.
var ErrNotConfigured = errors.New("llm provider not configured")

// Client completes a prompt pair into response text.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error)
	// Name is the human readable provider name shown to users.
	Name() string
}

// CompleteOptions holds per-call generation settings.
type CompleteOptions struct {
	Temperature *float32
	MaxTokens   int
}

// CompleteOption is a functional option for Complete.
type CompleteOption func(*CompleteOptions)

func WithTemperature(t float32) CompleteOption {
	return func(o *CompleteOptions) {
		o.Temperature = &t
	}
}

func WithMaxTokens(n int) CompleteOption {
	return func(o *CompleteOptions) {
		o.MaxTokens = n
	}
}

func ApplyOptions(opts ...CompleteOption) CompleteOptions {
	var o CompleteOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Configured reports whether c talks to a real provider.
func Configured(c Client) bool {
	for c != nil {
		switch v := c.(type) {
		case *Static, Static:
			return false
		case interface{ Unwrap() Client }:
			c = v.Unwrap()
		default:
			return true
		}
	}
	return false
}

// Static is the client used when no API key is available.
type Static struct{}

func (Static) Complete(context.Context, string, string, ...CompleteOption) (string, error) {
	return "", ErrNotConfigured
}

func (Static) Name() string {
	return StaticName
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// New returns the client for cfg.Provider. A missing key yields a Static client
// so the service keeps answering with fallback messages.
func New(ctx context.Context, cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == ProviderNone || cfg.APIKey == "" {
		return &Static{}, nil
	}
	switch provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
