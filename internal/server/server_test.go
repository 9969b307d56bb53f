package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/patients"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/server"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/visualization"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

type mockPipeline struct {
	ReplyFunc       func(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
	GenerateSQLFunc func(ctx context.Context, question string) (string, error)
	ProviderName    string
	SchemaText      string
}

func (m *mockPipeline) Reply(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
	if m.ReplyFunc == nil {
		return pipeline.Response{Reply: "hola", Provider: m.ProviderName}, nil
	}
	return m.ReplyFunc(ctx, req)
}

func (m *mockPipeline) GenerateSQL(ctx context.Context, question string) (string, error) {
	if m.GenerateSQLFunc == nil {
		return "", pipeline.ErrLLMUnavailable
	}
	return m.GenerateSQLFunc(ctx, question)
}

func (m *mockPipeline) Provider() string { return m.ProviderName }
func (m *mockPipeline) Schema() string   { return m.SchemaText }

type mockStore struct {
	PingFunc                func(ctx context.Context) error
	RecentConversationsFunc func(ctx context.Context, limit int) ([]store.Conversation, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}

func (m *mockStore) RecentConversations(ctx context.Context, limit int) ([]store.Conversation, error) {
	if m.RecentConversationsFunc == nil {
		return nil, nil
	}
	return m.RecentConversationsFunc(ctx, limit)
}

type mockPatients struct {
	FilterFunc  func(ctx context.Context, f patients.Filters, page, rowsPerPage int) (patients.Page, error)
	OptionsFunc func(ctx context.Context) (patients.Options, error)
}

func (m *mockPatients) Filter(ctx context.Context, f patients.Filters, page, rowsPerPage int) (patients.Page, error) {
	return m.FilterFunc(ctx, f, page, rowsPerPage)
}

func (m *mockPatients) Options(ctx context.Context) (patients.Options, error) {
	return m.OptionsFunc(ctx)
}

type mockVisualization struct {
	AgePyramidFunc func(ctx context.Context, diagnosis string) ([]visualization.PyramidBucket, error)
}

func (m *mockVisualization) AgePyramid(ctx context.Context, diagnosis string) ([]visualization.PyramidBucket, error) {
	return m.AgePyramidFunc(ctx, diagnosis)
}

func (m *mockVisualization) AgeHistogram(_ context.Context, diagnosis string) (visualization.Histogram, error) {
	return visualization.Histogram{AgeGroups: visualization.AgeGroups(), Counts: make([]int64, len(visualization.AgeGroups())), Diagnosis: diagnosis}, nil
}

func (m *mockVisualization) GenderDistribution(_ context.Context, diagnosis string) (visualization.GenderDistribution, error) {
	return visualization.GenderDistribution{MaleCount: 3, FemaleCount: 4, Total: 7, Diagnosis: diagnosis}, nil
}

func (m *mockVisualization) Overview(_ context.Context, diagnosis string) (visualization.Overview, error) {
	return visualization.Overview{Diagnosis: diagnosis}, nil
}

func newServer(t *testing.T, cfg *server.Config) *server.Server {
	t.Helper()
	cfg.Logger = logger
	if cfg.Pipeline == nil {
		cfg.Pipeline = &mockPipeline{ProviderName: "Mock LLM", SchemaText: "vista_muy_interesante"}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewFakeClockAt(testNow)
	}
	srv, err := server.New(cfg)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *server.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestInsight_Server_ConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("logger required", func(t *testing.T) {
		t.Parallel()
		err := (&server.Config{Pipeline: &mockPipeline{}}).Validate()
		require.EqualError(t, err, "logger is required")
	})

	t.Run("pipeline required", func(t *testing.T) {
		t.Parallel()
		err := (&server.Config{Logger: logger}).Validate()
		require.EqualError(t, err, "pipeline is required")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg := &server.Config{Logger: logger, Pipeline: &mockPipeline{}}
		require.NoError(t, cfg.Validate())
		assert.NotNil(t, cfg.Classifier)
		assert.NotNil(t, cfg.Clock)
		assert.Equal(t, 100, cfg.RateLimit)
		assert.Equal(t, 15*time.Minute, cfg.RateWindow)
		assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	})
}

func TestInsight_Server_Chat(t *testing.T) {
	t.Parallel()

	t.Run("reply", func(t *testing.T) {
		t.Parallel()
		var got pipeline.Request
		srv := newServer(t, &server.Config{Pipeline: &mockPipeline{
			ProviderName: "Mock LLM",
			ReplyFunc: func(_ context.Context, req pipeline.Request) (pipeline.Response, error) {
				got = req
				return pipeline.Response{Reply: "💙 Hola", Provider: "Mock LLM", Timestamp: "2025-03-14T10:30:00Z"}, nil
			},
		}})

		rec := do(t, srv, http.MethodPost, "/api/chat", `{"message":"hola","history":[{"role":"user","content":"antes"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		resp := decodeBody[pipeline.Response](t, rec)
		assert.Equal(t, "💙 Hola", resp.Reply)
		assert.Equal(t, "Mock LLM", resp.Provider)
		assert.Equal(t, "hola", got.Message)
		require.Len(t, got.History, 1)
		assert.Equal(t, "antes", got.History[0].Content)
	})

	t.Run("empty message", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{})

		for _, body := range []string{`{"message":"   "}`, `{}`, `not json`} {
			rec := do(t, srv, http.MethodPost, "/api/chat", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
			resp := decodeBody[map[string]string](t, rec)
			assert.Equal(t, "Mensaje vacío", resp["error"])
			assert.Equal(t, "Por favor, escribe tu mensaje.", resp["reply"])
		}
	})

	t.Run("pipeline error", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{Pipeline: &mockPipeline{
			ReplyFunc: func(context.Context, pipeline.Request) (pipeline.Response, error) {
				return pipeline.Response{}, context.DeadlineExceeded
			},
		}})

		tests := []struct {
			message string
			urgent  bool
		}{
			{message: "no quiero vivir", urgent: true},
			{message: "hola", urgent: false},
		}
		for _, tt := range tests {
			rec := do(t, srv, http.MethodPost, "/api/chat", `{"message":"`+tt.message+`"}`)
			require.Equal(t, http.StatusInternalServerError, rec.Code)

			var resp struct {
				Reply    string `json:"reply"`
				IsUrgent bool   `json:"isUrgent"`
				Error    bool   `json:"error"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, pipeline.FallbackReply(tt.urgent), resp.Reply)
			assert.Equal(t, tt.urgent, resp.IsUrgent)
			assert.True(t, resp.Error)
		}
	})
}

func TestInsight_Server_Chat_RateLimit(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(testNow)
	srv := newServer(t, &server.Config{Clock: clock, RateLimit: 2, RateWindow: time.Minute})

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hola"}`))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	before := testutil.ToFloat64(metrics.HTTPRateLimitedTotal)

	require.Equal(t, http.StatusOK, send("203.0.113.7:5000").Code)
	require.Equal(t, http.StatusOK, send("203.0.113.7:5001").Code)

	rec := send("203.0.113.7:5002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Demasiadas solicitudes. Por favor, espera 15 minutos.", resp["error"])
	assert.Contains(t, resp["reply"], pipeline.CrisisPhone)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.HTTPRateLimitedTotal)-before, 1.0)

	// Other clients have their own budget.
	require.Equal(t, http.StatusOK, send("198.51.100.1:4000").Code)

	clock.Advance(time.Minute)
	require.Equal(t, http.StatusOK, send("203.0.113.7:5003").Code)

	// Only chat is limited.
	for range 3 {
		require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/schema", "").Code)
	}
}

func TestInsight_Server_Chat_RateLimitWindow(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(testNow)
	srv := newServer(t, &server.Config{Clock: clock, RateLimit: 100, RateWindow: 15 * time.Minute})

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hola"}`))
		req.RemoteAddr = "203.0.113.9:6000"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	allowed := 0
	for range 100 {
		if send() == http.StatusOK {
			allowed++
		}
	}
	for elapsed := time.Second; elapsed < 15*time.Minute; elapsed += time.Second {
		clock.Advance(time.Second)
		if send() == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 100, allowed)

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, send())
}

func TestInsight_Server_GenerateSQL(t *testing.T) {
	t.Parallel()

	t.Run("generated", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{Pipeline: &mockPipeline{
			GenerateSQLFunc: func(_ context.Context, q string) (string, error) {
				return "SELECT region FROM vista_muy_interesante LIMIT 100", nil
			},
		}})

		rec := do(t, srv, http.MethodPost, "/api/generate-sql", `{"question":"¿qué regiones hay?"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[server.GenerateSQLResponse](t, rec)
		assert.Equal(t, server.GenerateSQLResponse{
			SQL:      "SELECT region FROM vista_muy_interesante LIMIT 100",
			Question: "¿qué regiones hay?",
		}, resp)
	})

	t.Run("empty question", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{})
		rec := do(t, srv, http.MethodPost, "/api/generate-sql", `{"question":""}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Pregunta vacía", decodeBody[map[string]string](t, rec)["error"])
	})

	t.Run("errors are not leaked", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			err  error
			want string
		}{
			{err: pipeline.ErrLLMUnavailable, want: "No hay proveedor de IA configurado"},
			{err: errors.Join(pipeline.ErrRejectedSQL, errors.New("table users not allowed")), want: "La consulta generada no está permitida"},
			{err: errors.New("dial tcp 10.0.0.1:443: secret-host"), want: "No se pudo generar la consulta"},
		}
		for _, tt := range tests {
			srv := newServer(t, &server.Config{Pipeline: &mockPipeline{
				GenerateSQLFunc: func(context.Context, string) (string, error) { return "", tt.err },
			}})
			rec := do(t, srv, http.MethodPost, "/api/generate-sql", `{"question":"casos"}`)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.want, decodeBody[map[string]string](t, rec)["error"])
		}
	})
}

func TestInsight_Server_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		store    server.Store
		want     server.HealthResponse
	}{
		{
			name:     "no database no provider",
			provider: llm.StaticName,
			want: server.HealthResponse{
				Status: "healthy", Service: "Team Bingo - Agentic Mental Health Chat",
				Database: "not_configured", AIProvider: "none", Timestamp: "2025-03-14T10:30:00Z",
			},
		},
		{
			name:     "connected",
			provider: "Google Gemini",
			store:    &mockStore{},
			want: server.HealthResponse{
				Status: "healthy", Service: "Team Bingo - Agentic Mental Health Chat",
				Database: "connected", AIProvider: "Google Gemini", Timestamp: "2025-03-14T10:30:00Z",
			},
		},
		{
			name:     "ping fails",
			provider: "Google Gemini",
			store:    &mockStore{PingFunc: func(context.Context) error { return errors.New("connection refused") }},
			want: server.HealthResponse{
				Status: "degraded", Service: "Team Bingo - Agentic Mental Health Chat",
				Database: "unavailable", AIProvider: "Google Gemini", Timestamp: "2025-03-14T10:30:00Z",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, &server.Config{
				Pipeline: &mockPipeline{ProviderName: tt.provider},
				Store:    tt.store,
			})
			rec := do(t, srv, http.MethodGet, "/api/health", "")
			require.Equal(t, http.StatusOK, rec.Code)
			if diff := cmp.Diff(tt.want, decodeBody[server.HealthResponse](t, rec)); diff != "" {
				t.Errorf("health mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInsight_Server_Schema(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Config{Pipeline: &mockPipeline{SchemaText: "vista_muy_interesante(region, enfermedad, num_casos)"}})
	rec := do(t, srv, http.MethodGet, "/api/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vista_muy_interesante(region, enfermedad, num_casos)", decodeBody[map[string]string](t, rec)["schema"])
}

func TestInsight_Server_Conversations(t *testing.T) {
	t.Parallel()

	t.Run("disabled by default", func(t *testing.T) {
		t.Parallel()
		called := false
		srv := newServer(t, &server.Config{Store: &mockStore{
			RecentConversationsFunc: func(context.Context, int) ([]store.Conversation, error) {
				called = true
				return []store.Conversation{{ID: 1, UserMessage: "hola"}}, nil
			},
		}})
		rec := do(t, srv, http.MethodGet, "/api/conversations", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), "hola")
		assert.False(t, called)
	})

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{ExposeConversations: true})
		rec := do(t, srv, http.MethodGet, "/api/conversations", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()
		var mu sync.Mutex
		var limits []int
		st := &mockStore{RecentConversationsFunc: func(_ context.Context, limit int) ([]store.Conversation, error) {
			mu.Lock()
			defer mu.Unlock()
			limits = append(limits, limit)
			return []store.Conversation{{ID: 1, UserMessage: "hola", AssistantResponse: "💙", CreatedAt: testNow}}, nil
		}}
		srv := newServer(t, &server.Config{Store: st, ExposeConversations: true})

		for _, target := range []string{"/api/conversations", "/api/conversations?limit=5", "/api/conversations?limit=10000"} {
			rec := do(t, srv, http.MethodGet, target, "")
			require.Equal(t, http.StatusOK, rec.Code, target)
			var resp struct {
				Conversations []store.Conversation `json:"conversations"`
				Count         int                  `json:"count"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, 1, resp.Count)
			assert.Equal(t, "hola", resp.Conversations[0].UserMessage)
		}
		assert.Equal(t, []int{store.DefaultRecentConversations, 5, store.MaxRecentConversations}, limits)

		for _, target := range []string{"/api/conversations?limit=abc", "/api/conversations?limit=0"} {
			rec := do(t, srv, http.MethodGet, target, "")
			require.Equal(t, http.StatusBadRequest, rec.Code, target)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{ExposeConversations: true, Store: &mockStore{
			RecentConversationsFunc: func(context.Context, int) ([]store.Conversation, error) {
				return nil, errors.New("relation conversation_log does not exist")
			},
		}})
		rec := do(t, srv, http.MethodGet, "/api/conversations", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "conversation_log")
	})
}

func TestInsight_Server_Patients(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{})
		require.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/patients/filter", `{}`).Code)
		require.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/api/patients/filter-options", "").Code)
	})

	t.Run("filter", func(t *testing.T) {
		t.Parallel()
		var (
			gotFilters     patients.Filters
			gotPage, gotRP int
		)
		svc := &mockPatients{FilterFunc: func(_ context.Context, f patients.Filters, page, rowsPerPage int) (patients.Page, error) {
			gotFilters, gotPage, gotRP = f, page, rowsPerPage
			return patients.Page{
				Data:         []patients.Patient{{ID: 21, Nombre: "PACIENTE 00021", Comunidad: "Madrid"}},
				TotalRecords: 41, CurrentPage: page, TotalPages: 3, RowsPerPage: rowsPerPage,
			}, nil
		}}
		srv := newServer(t, &server.Config{Patients: svc})

		body := `{"comunidades":["Madrid"],"año_nacimiento_min":1980,"sexo":["Mujer"],"page":2,"rows_per_page":20}`
		rec := do(t, srv, http.MethodPost, "/api/patients/filter", body)
		require.Equal(t, http.StatusOK, rec.Code)

		minYear := 1980
		if diff := cmp.Diff(patients.Filters{Comunidades: []string{"Madrid"}, BirthYearMin: &minYear, Sexo: []string{"Mujer"}}, gotFilters); diff != "" {
			t.Errorf("filters mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 2, gotPage)
		assert.Equal(t, 20, gotRP)

		page := decodeBody[patients.Page](t, rec)
		assert.Equal(t, int64(41), page.TotalRecords)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "PACIENTE 00021", page.Data[0].Nombre)
	})

	t.Run("invalid body", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{Patients: &mockPatients{}})
		rec := do(t, srv, http.MethodPost, "/api/patients/filter", `{"page":"dos"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		want := patients.Options{
			Comunidades:    []string{"Andalucía", "Madrid"},
			Sexos:          []string{"Hombre", "Mujer", "Otros"},
			Diagnosticos:   []string{"Depresión"},
			Centros:        []string{"Centro 1"},
			BirthYearRange: patients.YearRange{Min: 1950, Max: 2005},
		}
		srv := newServer(t, &server.Config{Patients: &mockPatients{
			OptionsFunc: func(context.Context) (patients.Options, error) { return want, nil },
		}})
		rec := do(t, srv, http.MethodGet, "/api/patients/filter-options", "")
		require.Equal(t, http.StatusOK, rec.Code)
		if diff := cmp.Diff(want, decodeBody[patients.Options](t, rec)); diff != "" {
			t.Errorf("options mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestInsight_Server_Visualization(t *testing.T) {
	t.Parallel()

	viz := &mockVisualization{AgePyramidFunc: func(_ context.Context, diagnosis string) ([]visualization.PyramidBucket, error) {
		if diagnosis == "Fallo" {
			return nil, errors.New("duckdb: binder error")
		}
		return []visualization.PyramidBucket{{Intervalo: "1980-1989", Hombres: 2, Mujeres: 5}}, nil
	}}
	srv := newServer(t, &server.Config{Visualization: viz})

	t.Run("pyramid", func(t *testing.T) {
		t.Parallel()
		rec := do(t, srv, http.MethodGet, "/api/visualization/pyramid?diagnosis=Depresi%C3%B3n", "")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[[]visualization.PyramidBucket](t, rec)
		assert.Equal(t, []visualization.PyramidBucket{{Intervalo: "1980-1989", Hombres: 2, Mujeres: 5}}, got)
	})

	t.Run("gender", func(t *testing.T) {
		t.Parallel()
		rec := do(t, srv, http.MethodGet, "/api/visualization/gender?diagnosis=Ansiedad", "")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[visualization.GenderDistribution](t, rec)
		assert.Equal(t, visualization.GenderDistribution{MaleCount: 3, FemaleCount: 4, Total: 7, Diagnosis: "Ansiedad"}, got)
	})

	t.Run("histogram and overview", func(t *testing.T) {
		t.Parallel()
		for _, target := range []string{"/api/visualization/histogram?diagnosis=Ansiedad", "/api/visualization/overview?diagnosis=Ansiedad"} {
			rec := do(t, srv, http.MethodGet, target, "")
			require.Equal(t, http.StatusOK, rec.Code, target)
			assert.Contains(t, rec.Body.String(), `"diagnosis":"Ansiedad"`)
		}
	})

	t.Run("diagnosis required", func(t *testing.T) {
		t.Parallel()
		for _, chart := range []string{"pyramid", "histogram", "gender", "overview"} {
			rec := do(t, srv, http.MethodGet, "/api/visualization/"+chart+"?diagnosis=%20", "")
			require.Equal(t, http.StatusBadRequest, rec.Code, chart)
		}
	})

	t.Run("service error", func(t *testing.T) {
		t.Parallel()
		rec := do(t, srv, http.MethodGet, "/api/visualization/pyramid?diagnosis=Fallo", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "binder")
	})

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, &server.Config{})
		rec := do(t, srv, http.MethodGet, "/api/visualization/pyramid?diagnosis=Ansiedad", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestInsight_Server_CORS(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Config{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestInsight_Server_Metrics(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Config{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/health", "").Code)

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "insight_http_requests_total")
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/health", "200")), 1.0)
}

func TestInsight_Server_Serve(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &server.Config{ShutdownTimeout: 5 * time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
