package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type SQLCmd struct{}

func NewSQLCmd() *SQLCmd {
	return &SQLCmd{}
}

func (c *SQLCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <question>",
		Short: "Generate the query for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			execute, err := cmd.Flags().GetBool("execute")
			if err != nil {
				return fmt.Errorf("failed to get execute flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cmd, appOptions{logOutput: os.Stderr, requireStore: execute})
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			sql, err := a.pipeline.GenerateSQL(ctx, question)
			if err != nil {
				return fmt.Errorf("failed to generate SQL: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sql)

			if !execute {
				return nil
			}
			if a.store == nil {
				return errors.New("database is not available")
			}
			res, err := a.store.Query(ctx, sql)
			if err != nil {
				return fmt.Errorf("failed to execute query: %w", err)
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Bool("execute", false, "run the generated query and print the rows")

	return cmd
}

func renderResult(w io.Writer, res store.Result) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader(res.Columns)

	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			if v := row[col]; v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		table.Append(cells)
	}
	table.Render()

	suffix := ""
	if res.Truncated {
		suffix = " (truncated)"
	}
	fmt.Fprintf(w, "%d rows%s\n", res.Count, suffix)
}
