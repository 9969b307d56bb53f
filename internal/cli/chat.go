package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/terminal"
	"github.com/spf13/cobra"
)

type ChatCmd struct{}

func NewChatCmd() *ChatCmd {
	return &ChatCmd{}
}

func (c *ChatCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			// Logs go to stderr so they do not interleave with the conversation.
			a, err := newApp(ctx, cmd, appOptions{logOutput: os.Stderr})
			if err != nil {
				return err
			}
			defer a.Close()

			chat, err := terminal.New(&terminal.Config{
				Logger:            a.log,
				Pipeline:          a.pipeline,
				In:                os.Stdin,
				Out:               os.Stdout,
				DatabaseConnected: a.store != nil,
			})
			if err != nil {
				return err
			}
			return chat.Run(ctx)
		},
	}
}
