package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
)

const maxHistoryRunes = 1000

// respond generates a conversational reply using the recent history.
func (p *Pipeline) respond(ctx context.Context, msg string, history []Message) (string, string) {
	if !llm.Configured(p.cfg.LLM) {
		return GreetingReply, metrics.RouteGeneral
	}

	if len(history) > p.cfg.MaxHistory {
		history = history[len(history)-p.cfg.MaxHistory:]
	}

	reply, err := p.cfg.LLM.Complete(ctx, p.cfg.Prompts.General, historyPrompt(msg, history), llm.WithTemperature(proseTemperature))
	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		p.log.Warn("pipeline: general reply failed", "error", err)
		return GeneralErrorReply, metrics.RouteFallback
	}
	return reply, metrics.RouteGeneral
}

func historyPrompt(msg string, history []Message) string {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Conversación previa:\n")
		for _, m := range history {
			content := strings.TrimSpace(m.Content)
			if content == "" {
				continue
			}
			if m.Role == "user" {
				fmt.Fprintf(&sb, "Usuario: %s\n", content)
			} else {
				fmt.Fprintf(&sb, "Acompaña: %s\n", store.Truncate(content, maxHistoryRunes))
			}
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Mensaje actual: %s", msg)
	return sb.String()
}
