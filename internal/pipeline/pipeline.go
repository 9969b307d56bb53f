// Package pipeline answers chat messages. Urgent messages get crisis
// resources, data questions are turned into a guarded query over the
// statistics view and interpreted, everything else gets a conversational
// reply. Every failure degrades to a fixed empathetic message.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/classify"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/sqlguard"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	defaultMaxRetries   = 1
	defaultMaxHistory   = 10
	defaultCacheTTL     = time.Hour
	defaultAuditTimeout = 5 * time.Second
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrLLMUnavailable = errors.New("llm provider not configured")
	ErrRejectedSQL    = errors.New("generated SQL rejected")
)

// Store is the subset of the database the pipeline needs.
type Store interface {
	Query(ctx context.Context, query string, args ...any) (store.Result, error)
	LogConversation(ctx context.Context, c store.Conversation) error
}

type Config struct {
	Logger     *slog.Logger
	LLM        llm.Client
	Store      Store // nil when no database is configured
	Classifier *classify.Classifier
	Guard      *sqlguard.Guard
	Prompts    *Prompts
	Clock      clockwork.Clock

	// MaxRetries is how many times a failed query is regenerated with the
	// error in the prompt. Negative disables regeneration.
	MaxRetries int
	MaxHistory int

	// Cache holds validated SQL by normalized question.
	Cache        *ristretto.Cache
	CacheTTL     time.Duration
	AuditTimeout time.Duration

	// IncludeSQL adds the executed query to responses.
	IncludeSQL bool
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Classifier == nil {
		return errors.New("classifier is required")
	}
	if c.LLM == nil {
		c.LLM = &llm.Static{}
	}
	if c.Guard == nil {
		c.Guard = sqlguard.Default()
	}
	if c.Prompts == nil {
		prompts, err := LoadPrompts()
		if err != nil {
			return err
		}
		c.Prompts = prompts
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	switch {
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	case c.MaxRetries == 0:
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = defaultMaxHistory
	}
	if c.Cache == nil {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 100_000,
			MaxCost:     10_000,
			BufferItems: 64,
		})
		if err != nil {
			return fmt.Errorf("failed to create SQL cache: %w", err)
		}
		c.Cache = cache
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.AuditTimeout <= 0 {
		c.AuditTimeout = defaultAuditTimeout
	}
	return nil
}

// Message is one turn of the conversation history sent by the client.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type Request struct {
	Message string    `json:"message"`
	History []Message `json:"history,omitempty"`
}

type Response struct {
	Reply     string `json:"reply"`
	IsUrgent  bool   `json:"isUrgent"`
	UsedData  bool   `json:"usedData"`
	Provider  string `json:"provider"`
	Timestamp string `json:"timestamp"`
	SQL       string `json:"sql,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Pipeline struct {
	cfg *Config
	log *slog.Logger
}

func New(cfg *Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg: cfg,
		log: cfg.Logger,
	}, nil
}

// Provider is the name reported in responses.
func (p *Pipeline) Provider() string {
	return p.cfg.LLM.Name()
}

// Schema is the view description given to the SQL generator.
func (p *Pipeline) Schema() string {
	return p.cfg.Prompts.Schema
}

// Reply answers one chat message. It only fails on an empty message or when
// ctx ends before a reply is ready; callers answer those with FallbackReply.
func (p *Pipeline) Reply(ctx context.Context, req Request) (Response, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return Response{}, ErrEmptyMessage
	}

	class := p.cfg.Classifier.Classify(msg)
	resp := Response{
		IsUrgent:  class.Urgent,
		Provider:  p.Provider(),
		RequestID: uuid.NewString(),
	}

	var route string
	switch {
	case class.Urgent:
		resp.Reply, route = CrisisReply, metrics.RouteUrgent
	case class.Data && p.cfg.Store != nil:
		if ans, ok := p.answerWithData(ctx, msg); ok {
			resp.Reply, route = ans.reply, ans.route
			resp.UsedData = ans.usedData
			if p.cfg.IncludeSQL {
				resp.SQL = ans.sql
			}
		}
	}
	if resp.Reply == "" {
		resp.Reply, route = p.respond(ctx, msg, req.History)
	}

	if err := ctx.Err(); err != nil {
		metrics.ChatRepliesTotal.WithLabelValues(metrics.RouteFallback).Inc()
		return Response{}, fmt.Errorf("reply aborted: %w", err)
	}

	resp.Timestamp = p.cfg.Clock.Now().UTC().Format(time.RFC3339)
	metrics.ChatRepliesTotal.WithLabelValues(route).Inc()
	p.log.Info("pipeline: reply ready",
		"request_id", resp.RequestID,
		"route", route,
		"urgent", resp.IsUrgent,
		"used_data", resp.UsedData)

	p.audit(ctx, msg, resp)
	return resp, nil
}

// audit writes the exchange to the conversation log. Failures are logged and
// never affect the reply.
func (p *Pipeline) audit(ctx context.Context, msg string, resp Response) {
	if p.cfg.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.AuditTimeout)
	defer cancel()

	err := p.cfg.Store.LogConversation(ctx, store.Conversation{
		RequestID:         resp.RequestID,
		UserMessage:       msg,
		AssistantResponse: resp.Reply,
		IsUrgent:          resp.IsUrgent,
		UsedData:          resp.UsedData,
		Provider:          resp.Provider,
	})
	if err != nil {
		metrics.AuditLogFailuresTotal.Inc()
		p.log.Warn("pipeline: failed to log conversation", "request_id", resp.RequestID, "error", err)
	}
}
