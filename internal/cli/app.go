package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/classify"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/config"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/logger"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/patients"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/visualization"
	"github.com/spf13/cobra"
)

// app holds the components shared by the commands. store, patients and viz
// are nil when the database could not be opened.
type app struct {
	log        *slog.Logger
	cfg        *config.Config
	classifier *classify.Classifier
	llm        llm.Client
	store      *store.Store
	pipeline   *pipeline.Pipeline
	patients   *patients.Service
	viz        *visualization.Service
}

type appOptions struct {
	logOutput io.Writer
	// requireStore fails instead of running without a database.
	requireStore bool
	// migrate forces migrations even when seeding is disabled.
	migrate bool
	seed    bool
}

func newApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (*app, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	envFile, err := cmd.Root().PersistentFlags().GetString("env-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get env-file flag: %w", err)
	}

	if opts.logOutput == nil {
		opts.logOutput = os.Stdout
	}
	log := logger.NewWithWriter(opts.logOutput, verbose)

	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log.Debug("cli: config loaded", "config", cfg)

	a := &app{log: log, cfg: cfg}

	a.classifier = classify.Default()
	if cfg.KeywordsFile != "" {
		if a.classifier, err = classify.LoadFile(cfg.KeywordsFile); err != nil {
			return nil, err
		}
	}

	client, err := llm.New(ctx, cfg.LLM())
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	if llm.Configured(client) {
		if client, err = llm.NewRetrying(llm.RetryConfig{Logger: log}, client); err != nil {
			return nil, err
		}
	} else {
		log.Warn("cli: no AI provider configured, answering with fallback messages")
	}
	a.llm = client

	if err := a.openStore(ctx, opts); err != nil {
		if opts.requireStore {
			return nil, err
		}
		log.Warn("cli: running without database", "error", err)
	}

	retries := cfg.SQLMaxRetries
	if retries == 0 {
		retries = -1
	}
	pcfg := &pipeline.Config{
		Logger:     log,
		LLM:        a.llm,
		Classifier: a.classifier,
		MaxRetries: retries,
		IncludeSQL: cfg.DebugSQL,
	}
	if a.store != nil {
		pcfg.Store = a.store
	}
	if a.pipeline, err = pipeline.New(pcfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, opts appOptions) error {
	st, err := store.Open(ctx, a.cfg.Store(a.log))
	if err != nil {
		return err
	}

	if opts.migrate || a.cfg.DBSeed || opts.seed {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return err
		}
	}
	if a.cfg.DBSeed || opts.seed {
		if err := st.Seed(ctx); err != nil {
			st.Close()
			return err
		}
	}

	n, err := st.VerifyView(ctx)
	if err != nil {
		st.Close()
		return err
	}
	a.log.Info("cli: statistics view ready", "view", store.ViewName, "rows", n)

	a.patients, err = patients.NewService(&patients.Config{Logger: a.log, DB: st.DB()})
	if err != nil {
		st.Close()
		return err
	}
	a.viz, err = visualization.NewService(&visualization.Config{Logger: a.log, DB: st.DB()})
	if err != nil {
		st.Close()
		return err
	}
	a.store = st
	return nil
}

func (a *app) Close() {
	if a.viz != nil {
		a.viz.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("cli: failed to close database", "error", err)
		}
	}
}
