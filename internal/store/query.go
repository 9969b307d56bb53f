package store

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
)

// Result holds the rows of a read query keyed by column name.
type Result struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated,omitempty"`
}

// Query runs a read query bounded by the configured timeout and row cap.
func (s *Store) Query(ctx context.Context, query string, args ...any) (Result, error) {
	start := time.Now()
	res, err := s.query(ctx, query, args...)
	metrics.StoreQueryDuration.WithLabelValues("query", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, err
	}
	s.log.Debug("store: query executed", "rows", res.Count, "truncated", res.Truncated, "duration", time.Since(start))
	return res, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get columns: %w", err)
	}

	res := Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(res.Rows) >= s.cfg.MaxRows {
			res.Truncated = true
			break
		}
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return Result{}, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("failed to iterate rows: %w", err)
	}
	res.Count = len(res.Rows)
	return res, nil
}

// normalizeValue maps driver specific values onto JSON friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		return val.String()
	case interface{ Float64() float64 }:
		return val.Float64()
	default:
		return val
	}
}
