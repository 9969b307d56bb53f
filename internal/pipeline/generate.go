package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/sqlguard"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
)

const (
	sqlTemperature   = 0.1
	proseTemperature = 0.7
	sqlCacheItemCost = 1
)

// GenerateSQL turns a question into a validated query over the statistics
// view without running it.
func (p *Pipeline) GenerateSQL(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	key := cacheKey(question)
	if sql, ok := p.cachedSQL(key); ok {
		return sql, nil
	}

	sql, err := p.generate(ctx, generatePrompt(question))
	if err != nil {
		return "", err
	}
	p.cacheSQL(key, sql)
	return sql, nil
}

// generate asks the LLM for a query and validates it. A rejected query is
// returned along with the error so it can be shown to the model on retry.
func (p *Pipeline) generate(ctx context.Context, userPrompt string) (string, error) {
	if !llm.Configured(p.cfg.LLM) {
		return "", ErrLLMUnavailable
	}

	reply, err := p.cfg.LLM.Complete(ctx, p.cfg.Prompts.Generate, userPrompt, llm.WithTemperature(sqlTemperature))
	if err != nil {
		return "", fmt.Errorf("failed to generate SQL: %w", err)
	}

	sql := sqlguard.StripFences(reply)
	validated, err := p.cfg.Guard.Validate(sql)
	if err != nil {
		metrics.SQLRejectionsTotal.Inc()
		p.log.Info("pipeline: generated SQL rejected", "sql", sql, "error", err)
		return sql, fmt.Errorf("%w: %w", ErrRejectedSQL, err)
	}
	p.log.Debug("pipeline: SQL generated", "sql", validated)
	return validated, nil
}

// generateAndExecute generates a query and runs it, regenerating with the
// error in the prompt up to MaxRetries times.
func (p *Pipeline) generateAndExecute(ctx context.Context, question string) (string, store.Result, error) {
	key := cacheKey(question)
	sql, cached := p.cachedSQL(key)

	var err error
	if !cached {
		sql, err = p.generate(ctx, generatePrompt(question))
	}

	for attempt := 1; ; attempt++ {
		if err == nil {
			var res store.Result
			res, err = p.cfg.Store.Query(ctx, sql)
			if err == nil {
				p.cacheSQL(key, sql)
				return sql, res, nil
			}
			if cached {
				p.cfg.Cache.Del(key)
				cached = false
			}
		}

		if attempt > p.cfg.MaxRetries || sql == "" || ctx.Err() != nil || errors.Is(err, ErrLLMUnavailable) {
			return sql, store.Result{}, err
		}

		p.log.Info("pipeline: retrying failed query", "attempt", attempt, "error", err)
		sql, err = p.generate(ctx, regeneratePrompt(question, sql, err))
	}
}

func generatePrompt(question string) string {
	return fmt.Sprintf("PREGUNTA DEL USUARIO: %s\n\nSQL:", question)
}

func regeneratePrompt(question, previousSQL string, queryErr error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PREGUNTA DEL USUARIO: %s\n\n", question)
	sb.WriteString("La consulta anterior falló:\n")
	sb.WriteString(previousSQL)
	fmt.Fprintf(&sb, "\n\nERROR: %v\n\n", queryErr)
	sb.WriteString("Genera una consulta corregida que respete las restricciones del esquema.\n\nSQL:")
	return sb.String()
}

func (p *Pipeline) cachedSQL(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	v, ok := p.cfg.Cache.Get(key)
	if !ok {
		return "", false
	}
	sql, ok := v.(string)
	return sql, ok
}

func (p *Pipeline) cacheSQL(key, sql string) {
	if key == "" || sql == "" {
		return
	}
	p.cfg.Cache.SetWithTTL(key, sql, sqlCacheItemCost, p.cfg.CacheTTL)
	p.cfg.Cache.Wait()
}

// cacheKey folds case, whitespace and surrounding punctuation so trivially
// different phrasings share a query.
func cacheKey(question string) string {
	q := strings.ToLower(strings.Join(strings.Fields(question), " "))
	return strings.Trim(q, "¿?¡!.,;: ")
}
