package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/spf13/cobra"
)

type MigrateCmd struct{}

func NewMigrateCmd() *MigrateCmd {
	return &MigrateCmd{}
}

func (c *MigrateCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and the statistics view",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := cmd.Flags().GetBool("seed")
			if err != nil {
				return fmt.Errorf("failed to get seed flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cmd, appOptions{requireStore: true, migrate: true, seed: seed})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.store.VerifyView(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ready with %d rows\n", store.ViewName, n)
			return nil
		},
	}

	cmd.Flags().Bool("seed", false, "load the sample patients when the table is empty")

	return cmd
}
