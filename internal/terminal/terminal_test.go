package terminal_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/terminal"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockPipeline struct {
	ReplyFunc func(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
	requests  []pipeline.Request
}

func (m *mockPipeline) Reply(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
	m.requests = append(m.requests, req)
	return m.ReplyFunc(ctx, req)
}

func (m *mockPipeline) Provider() string { return "Mock LLM" }

func echo(_ context.Context, req pipeline.Request) (pipeline.Response, error) {
	return pipeline.Response{
		Reply:    "eco: " + req.Message,
		Provider: "Mock LLM",
		UsedData: strings.Contains(req.Message, "casos"),
	}, nil
}

func run(t *testing.T, p *mockPipeline, input string) string {
	t.Helper()
	var out bytes.Buffer
	chat, err := terminal.New(&terminal.Config{
		Logger:   logger,
		Pipeline: p,
		In:       strings.NewReader(input),
		Out:      &out,
		Clock:    clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	require.NoError(t, chat.Run(context.Background()))
	return out.String()
}

func TestInsight_Terminal_ConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  terminal.Config
		want string
	}{
		{name: "logger", cfg: terminal.Config{}, want: "logger is required"},
		{name: "pipeline", cfg: terminal.Config{Logger: logger}, want: "pipeline is required"},
		{name: "input", cfg: terminal.Config{Logger: logger, Pipeline: &mockPipeline{}}, want: "input is required"},
		{name: "output", cfg: terminal.Config{Logger: logger, Pipeline: &mockPipeline{}, In: strings.NewReader("")}, want: "output is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.EqualError(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestInsight_Terminal_Run(t *testing.T) {
	t.Parallel()

	t.Run("banner and quit", func(t *testing.T) {
		t.Parallel()
		p := &mockPipeline{ReplyFunc: echo}
		out := run(t, p, "salir\nhola\n")

		assert.Contains(t, out, `Chatbot "Acompaña" iniciado`)
		assert.Contains(t, out, "Proveedor: Mock LLM")
		assert.Contains(t, out, "¿Qué comunidad tiene más casos?")
		assert.Contains(t, out, pipeline.CrisisPhone)
		assert.Contains(t, out, "¡Hasta pronto! Cuídate.")
		assert.Empty(t, p.requests)
	})

	t.Run("quit is case insensitive", func(t *testing.T) {
		t.Parallel()
		p := &mockPipeline{ReplyFunc: echo}
		run(t, p, "  SALIR  \n")
		assert.Empty(t, p.requests)
	})

	t.Run("empty lines are skipped", func(t *testing.T) {
		t.Parallel()
		p := &mockPipeline{ReplyFunc: echo}
		out := run(t, p, "\n   \nhola\n")
		require.Len(t, p.requests, 1)
		assert.Equal(t, "hola", p.requests[0].Message)
		assert.Contains(t, out, "🤖 Acompaña: eco: hola")
		assert.Contains(t, out, "Mock LLM · 0s")
		assert.NotContains(t, out, "[Consulta inteligente a base de datos]")
	})

	t.Run("data marker and history", func(t *testing.T) {
		t.Parallel()
		p := &mockPipeline{ReplyFunc: echo}
		out := run(t, p, "¿cuántos casos hay?\ngracias\n")

		assert.Contains(t, out, "[Consulta inteligente a base de datos]")
		require.Len(t, p.requests, 2)
		assert.Empty(t, p.requests[0].History)
		require.Len(t, p.requests[1].History, 2)
		assert.Equal(t, "user", p.requests[1].History[0].Role)
		assert.Equal(t, "¿cuántos casos hay?", p.requests[1].History[0].Content)
		assert.Equal(t, "assistant", p.requests[1].History[1].Role)
		assert.Equal(t, "eco: ¿cuántos casos hay?", p.requests[1].History[1].Content)
	})

	t.Run("history is bounded", func(t *testing.T) {
		t.Parallel()
		p := &mockPipeline{ReplyFunc: echo}
		run(t, p, strings.Repeat("hola\n", 15))
		require.Len(t, p.requests, 15)
		assert.Len(t, p.requests[14].History, 20)
	})

	t.Run("pipeline error", func(t *testing.T) {
		t.Parallel()
		p := &mockPipeline{ReplyFunc: func(context.Context, pipeline.Request) (pipeline.Response, error) {
			return pipeline.Response{}, errors.New("boom")
		}}
		out := run(t, p, "hola\n")
		assert.Contains(t, out, pipeline.FallbackReply(false))
		assert.NotContains(t, out, "boom")
	})
}

func TestInsight_Terminal_Run_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	chat, err := terminal.New(&terminal.Config{
		Logger:   logger,
		Pipeline: &mockPipeline{ReplyFunc: echo},
		In:       blockingReader{},
		Out:      &out,
	})
	require.NoError(t, err)
	require.NoError(t, chat.Run(ctx))
	assert.Contains(t, out.String(), "¡Hasta pronto!")
}

func TestInsight_Terminal_Run_ReaderExitsAfterQuit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := &mockPipeline{ReplyFunc: echo}
	out := run(t, p, "salir\nhola\n¿cuántos casos hay?\n")
	assert.Contains(t, out, "¡Hasta pronto!")
	assert.Empty(t, p.requests)
}

// blockingReader never returns.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}
