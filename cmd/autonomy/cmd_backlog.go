package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"autonomy/cmd/autonomy/ui"
	"autonomy/internal/backlog"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	listStatus string
	seedCount  int
	seedValue  uint64
)

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Inspect and maintain the task backlog",
}

var backlogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show status counts and tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacklogList(cmd.OutOrStdout(), listStatus)
	},
}

var backlogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Render the backlog markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacklogShow(cmd.OutOrStdout())
	},
}

var backlogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Append generated roadmap tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacklogSeed(cmd.OutOrStdout(), seedCount, seedValue)
	},
}

var backlogMarkDoneCmd = &cobra.Command{
	Use:   "mark-done PATTERN...",
	Short: "Mark pending tasks matching any pattern as done",
	Long: `Marks every pending task whose text matches one of the given regular
expressions (case-insensitive) as done. Other lines are left untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacklogMarkDone(cmd.OutOrStdout(), args)
	},
}

func init() {
	backlogListCmd.Flags().StringVar(&listStatus, "status", "", "Only show tasks with this status (pending, in_progress, done)")
	backlogSeedCmd.Flags().IntVar(&seedCount, "count", 50, "Number of tasks to generate")
	backlogSeedCmd.Flags().Uint64Var(&seedValue, "seed", 0, "Random seed (0 = time-based)")

	backlogCmd.AddCommand(backlogListCmd, backlogShowCmd, backlogSeedCmd, backlogMarkDoneCmd)
}

func runBacklogList(out io.Writer, status string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var filter *backlog.Status
	if status != "" {
		s, ok := parseStatus(status)
		if !ok {
			return fmt.Errorf("unknown status %q (valid: pending, in_progress, done)", status)
		}
		filter = &s
	}

	tasks, err := a.ledger.Tasks()
	if err != nil {
		return err
	}

	var counts backlog.Counts
	table := ui.NewSimpleTable("", []string{"Line", "Status", "Task"})
	for _, t := range tasks {
		switch t.Status {
		case backlog.Pending:
			counts.Pending++
		case backlog.InProgress:
			counts.InProgress++
		case backlog.Done:
			counts.Done++
		}
		if filter != nil && t.Status != *filter {
			continue
		}
		table.AddRow(fmt.Sprint(t.Line), t.Status.String(), ui.Truncate(t.Text, 72))
	}

	fmt.Fprintf(out, "%s: %d pending, %d in progress, %d done (%d total)\n",
		a.ledger.Path(), counts.Pending, counts.InProgress, counts.Done, counts.Total())
	fmt.Fprint(out, table.View(ui.DefaultStyles()))
	return nil
}

func parseStatus(s string) (backlog.Status, bool) {
	for _, st := range backlog.Statuses {
		if st.String() == s {
			return st, true
		}
	}
	return backlog.Status(0), false
}

func runBacklogShow(out io.Writer) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(a.ledger.Path())
	if err != nil {
		return fmt.Errorf("failed to read backlog: %w", err)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fall back to raw markdown
		_, err = out.Write(data)
		return err
	}
	rendered, err := renderer.Render(string(data))
	if err != nil {
		_, err = out.Write(data)
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}

func runBacklogSeed(out io.Writer, n int, seed uint64) error {
	if n <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	added, err := a.ledger.AppendGenerated(rng, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Added %d tasks to %s\n", len(added), a.ledger.Path())
	return nil
}

func runBacklogMarkDone(out io.Writer, patterns []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.ledger.MarkDone(patterns)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Marked %d tasks done\n", n)
	return nil
}
