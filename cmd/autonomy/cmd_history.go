package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"autonomy/cmd/autonomy/ui"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent role outcomes from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.Context(), cmd.OutOrStdout(), historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}

func runHistory(ctx context.Context, out io.Writer, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.journal == nil {
		return fmt.Errorf("history is disabled (history.enabled in %s)", configPathFor(a.ws))
	}
	entries, err := a.journal.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No outcomes recorded yet.")
		return nil
	}

	table := ui.NewSimpleTable("", []string{"Time", "Loop", "Cycle", "Role", "Outcome", "Subject"})
	for _, e := range entries {
		subject := e.Subject
		if e.Reverted {
			subject += " (reverted)"
		}
		table.AddRow(
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Loop,
			strconv.Itoa(e.Cycle),
			e.Role,
			e.Outcome,
			ui.Truncate(subject, 60),
		)
	}
	fmt.Fprint(out, table.View(ui.DefaultStyles()))
	return nil
}
