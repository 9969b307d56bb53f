// Package server exposes the chat pipeline and the patient and chart
// services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/classify"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/patients"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/visualization"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultRateLimit       = 100
	defaultRateWindow      = 15 * time.Minute
	defaultShutdownTimeout = 30 * time.Second
	readHeaderTimeout      = 10 * time.Second
	maxBodyBytes           = 1 << 20
)

type Pipeline interface {
	Reply(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
	GenerateSQL(ctx context.Context, question string) (string, error)
	Provider() string
	Schema() string
}

type Store interface {
	Ping(ctx context.Context) error
	RecentConversations(ctx context.Context, limit int) ([]store.Conversation, error)
}

type Patients interface {
	Filter(ctx context.Context, f patients.Filters, page, rowsPerPage int) (patients.Page, error)
	Options(ctx context.Context) (patients.Options, error)
}

type Visualization interface {
	AgePyramid(ctx context.Context, diagnosis string) ([]visualization.PyramidBucket, error)
	AgeHistogram(ctx context.Context, diagnosis string) (visualization.Histogram, error)
	GenderDistribution(ctx context.Context, diagnosis string) (visualization.GenderDistribution, error)
	Overview(ctx context.Context, diagnosis string) (visualization.Overview, error)
}

type Config struct {
	Logger     *slog.Logger
	Pipeline   Pipeline
	Classifier *classify.Classifier
	Clock      clockwork.Clock

	// Store, Patients and Visualization are nil when no database is
	// configured; their endpoints then answer 503.
	Store         Store
	Patients      Patients
	Visualization Visualization

	// ExposeConversations serves the audit log at /api/conversations. The
	// route is not registered otherwise.
	ExposeConversations bool

	ListenAddr      string
	CORSOrigins     []string
	RateLimit       int
	RateWindow      time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	if c.Classifier == nil {
		c.Classifier = classify.Default()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = defaultRateWindow
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}

type Server struct {
	log     *slog.Logger
	cfg     *Config
	limiter *rateLimiter
	router  chi.Router
}

func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log:     cfg.Logger,
		cfg:     cfg,
		limiter: newRateLimiter(cfg.Clock, cfg.RateLimit, cfg.RateWindow),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(s.rateLimit).Post("/chat", s.handleChat)
		r.Post("/generate-sql", s.handleGenerateSQL)
		r.Get("/health", s.handleHealth)
		r.Get("/schema", s.handleSchema)
		if s.cfg.ExposeConversations {
			r.Get("/conversations", s.handleConversations)
		}

		r.Post("/patients/filter", s.handleFilterPatients)
		r.Get("/patients/filter-options", s.handleFilterOptions)

		r.Get("/visualization/pyramid", chart(s, func(v Visualization) chartFunc[[]visualization.PyramidBucket] { return v.AgePyramid }))
		r.Get("/visualization/histogram", chart(s, func(v Visualization) chartFunc[visualization.Histogram] { return v.AgeHistogram }))
		r.Get("/visualization/gender", chart(s, func(v Visualization) chartFunc[visualization.GenderDistribution] { return v.GenderDistribution }))
		r.Get("/visualization/overview", chart(s, func(v Visualization) chartFunc[visualization.Overview] { return v.Overview }))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on ListenAddr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully giving
// in-flight requests up to ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("server: shutting down gracefully", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.log.Info("server: stopped")
	return nil
}
