package store

import (
	"context"
	"fmt"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
)

// MaxLoggedRunes bounds each logged message.
const MaxLoggedRunes = 4000

// RecentConversations returns DefaultRecentConversations rows when no limit is
// given and never more than MaxRecentConversations.
const (
	DefaultRecentConversations = 50
	MaxRecentConversations     = 500
)

type Conversation struct {
	ID                int64     `json:"id"`
	RequestID         string    `json:"request_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	IsUrgent          bool      `json:"is_urgent"`
	UsedData          bool      `json:"used_data"`
	Provider          string    `json:"provider"`
	CreatedAt         time.Time `json:"created_at"`
}

// LogConversation appends one exchange to the conversation log. A zero
// CreatedAt is filled from the store clock.
func (s *Store) LogConversation(ctx context.Context, c Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.cfg.Clock.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_conversations
			(request_id, user_message, assistant_response, is_urgent, used_data, provider, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.RequestID,
		Truncate(c.UserMessage, MaxLoggedRunes),
		Truncate(c.AssistantResponse, MaxLoggedRunes),
		c.IsUrgent,
		c.UsedData,
		c.Provider,
		c.CreatedAt,
	)
	metrics.StoreQueryDuration.WithLabelValues("log_conversation", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to log conversation: %w", err)
	}
	return nil
}

// RecentConversations returns the newest logged exchanges first.
func (s *Store) RecentConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = DefaultRecentConversations
	}
	limit = min(limit, MaxRecentConversations)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, user_message, assistant_response, is_urgent, used_data, provider, created_at
		FROM chat_conversations
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	out := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.RequestID, &c.UserMessage, &c.AssistantResponse,
			&c.IsUrgent, &c.UsedData, &c.Provider, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return out, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
