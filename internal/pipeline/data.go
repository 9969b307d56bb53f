package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
)

// maxInterpretRows bounds the rows shown to the LLM.
const maxInterpretRows = 50

type dataAnswer struct {
	reply    string
	sql      string
	route    string
	usedData bool
}

// answerWithData runs the query path. It reports false when the question
// cannot be answered from data at all and should get a general reply.
func (p *Pipeline) answerWithData(ctx context.Context, question string) (dataAnswer, bool) {
	var (
		sql string
		res store.Result
		err error
	)

	if llm.Configured(p.cfg.LLM) {
		sql, res, err = p.generateAndExecute(ctx, question)
		if err != nil && ctx.Err() == nil {
			p.log.Warn("pipeline: query generation failed, trying fallback queries", "error", err)
			if fq, ok := MatchFallback(question); ok {
				sql, res, err = p.runFallback(ctx, fq)
			}
		}
	} else {
		fq, ok := MatchFallback(question)
		if !ok {
			return dataAnswer{}, false
		}
		sql, res, err = p.runFallback(ctx, fq)
	}

	if err != nil {
		p.log.Warn("pipeline: data query failed", "error", err)
		return dataAnswer{reply: QueryErrorReply, sql: sql, route: metrics.RouteFallback}, true
	}
	if res.Count == 0 {
		return dataAnswer{reply: NoDataReply, sql: sql, route: metrics.RouteData}, true
	}

	p.log.Info("pipeline: data retrieved", "rows", res.Count)
	reply, err := p.interpret(ctx, question, res)
	if err != nil {
		p.log.Warn("pipeline: interpretation failed", "error", err)
		return dataAnswer{reply: InterpretErrorReply, sql: sql, route: metrics.RouteFallback, usedData: true}, true
	}
	return dataAnswer{reply: reply, sql: sql, route: metrics.RouteData, usedData: true}, true
}

func (p *Pipeline) runFallback(ctx context.Context, fq FallbackQuery) (string, store.Result, error) {
	sql, err := p.cfg.Guard.ValidateTemplate(fq.SQL)
	if err != nil {
		return fq.SQL, store.Result{}, fmt.Errorf("fallback query %s rejected: %w", fq.Name, err)
	}
	p.log.Info("pipeline: running fallback query", "name", fq.Name)
	res, err := p.cfg.Store.Query(ctx, sql, fq.Args...)
	if err != nil {
		return sql, store.Result{}, err
	}
	return sql, res, nil
}

// interpret turns rows into an answer. Without a provider the rows are
// returned as they are.
func (p *Pipeline) interpret(ctx context.Context, question string, res store.Result) (string, error) {
	if !llm.Configured(p.cfg.LLM) {
		data, err := json.Marshal(res.Rows)
		if err != nil {
			return "", fmt.Errorf("failed to encode rows: %w", err)
		}
		return rawDataPrefix + string(data), nil
	}

	rows, err := FormatRows(res.Rows)
	if err != nil {
		return "", err
	}
	userPrompt := fmt.Sprintf("PREGUNTA ORIGINAL: %s\n\nRESULTADOS DE LA CONSULTA (%d filas):\n%s\n\nRESPUESTA:", question, res.Count, rows)

	reply, err := p.cfg.LLM.Complete(ctx, p.cfg.Prompts.Interpret, userPrompt, llm.WithTemperature(proseTemperature))
	if err != nil {
		return "", fmt.Errorf("failed to interpret results: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("failed to interpret results: empty completion")
	}
	return reply, nil
}

// FormatRows renders up to 50 rows as indented JSON with floats rounded to
// two decimals.
func FormatRows(rows []map[string]any) (string, error) {
	if len(rows) > maxInterpretRows {
		rows = rows[:maxInterpretRows]
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		r := make(map[string]any, len(row))
		for k, v := range row {
			r[k] = roundFloat(v)
		}
		out[i] = r
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return string(data), nil
}

func roundFloat(v any) any {
	switch val := v.(type) {
	case float64:
		return math.Round(val*100) / 100
	case float32:
		return math.Round(float64(val)*100) / 100
	default:
		return v
	}
}
