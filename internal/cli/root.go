// Package cli implements the insight command line.
package cli

import (
	"fmt"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// BuildInfo is set at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func Run(info BuildInfo) ExitCode {
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.Date).Set(1)

	rootCmd := NewRootCmd(info)
	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "insight",
		Short:   "Mental health statistics assistant backend.",
		Version: fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.Commit, info.Date),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")
	rootCmd.PersistentFlags().StringP("env-file", "e", "", "load environment from this file instead of .env")

	rootCmd.AddCommand(
		NewServeCmd().Command(),
		NewChatCmd().Command(),
		NewSQLCmd().Command(),
		NewMigrateCmd().Command(),
	)
	return rootCmd
}
