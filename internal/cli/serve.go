package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/server"
	"github.com/spf13/cobra"
)

type ServeCmd struct{}

func NewServeCmd() *ServeCmd {
	return &ServeCmd{}
}

func (c *ServeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, err := cmd.Flags().GetString("listen")
			if err != nil {
				return fmt.Errorf("failed to get listen flag: %w", err)
			}
			shutdownTimeout, err := cmd.Flags().GetDuration("shutdown-timeout")
			if err != nil {
				return fmt.Errorf("failed to get shutdown-timeout flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if listen == "" {
				listen = a.cfg.ListenAddr
			}

			scfg := &server.Config{
				Logger:          a.log,
				Pipeline:        a.pipeline,
				Classifier:      a.classifier,
				ListenAddr:      listen,
				CORSOrigins:     a.cfg.CORSOrigins,
				RateLimit:       a.cfg.RateLimit,
				RateWindow:      a.cfg.RateWindow,
				ShutdownTimeout: shutdownTimeout,

				ExposeConversations: a.cfg.ExposeConversations,
			}
			// Leave the interfaces nil so handlers see a missing database.
			if a.store != nil {
				scfg.Store = a.store
				scfg.Patients = a.patients
				scfg.Visualization = a.viz
			}

			srv, err := server.New(scfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			a.log.Info("cli: starting server",
				"addr", listen,
				"provider", a.pipeline.Provider(),
				"database", a.store != nil,
			)
			if err := srv.Run(ctx); err != nil {
				a.log.Error("cli: server stopped with error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("listen", "", "listen address (default from LISTEN_ADDR or PORT)")
	cmd.Flags().Duration("shutdown-timeout", 0, "time given to in-flight requests on shutdown (default 30s)")

	return cmd
}
