package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/cenkalti/backoff/v5"
)

const defaultMaxTries = 3

type RetryConfig struct {
	Logger   *slog.Logger
	MaxTries uint
	// NewBackOff builds the backoff policy for one call. Defaults to exponential.
	NewBackOff func() backoff.BackOff
}

func (c *RetryConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.MaxTries == 0 {
		c.MaxTries = defaultMaxTries
	}
	if c.NewBackOff == nil {
		c.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		}
	}
	return nil
}

// Retrying retries transient completion failures of the wrapped client.
type Retrying struct {
	cfg  RetryConfig
	next Client
}

func NewRetrying(cfg RetryConfig, next Client) (*Retrying, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		return nil, errors.New("client is required")
	}
	return &Retrying{cfg: cfg, next: next}, nil
}

func (r *Retrying) Name() string {
	return r.next.Name()
}

func (r *Retrying) Unwrap() Client {
	return r.next
}

func (r *Retrying) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (string, error) {
		if attempt > 0 {
			r.cfg.Logger.Warn("llm: completion failed, retrying", "provider", r.next.Name(), "attempt", attempt)
		}
		attempt++
		out, err := r.next.Complete(ctx, systemPrompt, userPrompt, opts...)
		if err != nil {
			if isPermanent(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return out, nil
	}, backoff.WithBackOff(r.cfg.NewBackOff()), backoff.WithMaxTries(r.cfg.MaxTries))
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func observe(provider string, start time.Time, err error) {
	metrics.LLMCallDuration.WithLabelValues(provider, metrics.Outcome(err)).Observe(time.Since(start).Seconds())
}
