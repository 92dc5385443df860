package main

import (
	"context"
	"fmt"
	"io"

	"autonomy/internal/agents"
	"autonomy/internal/logging"
	"autonomy/internal/scheduler"

	"github.com/spf13/cobra"
)

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Run the producer once: claim, produce and checkpoint the first pending task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd.Context(), cmd.OutOrStdout(), scheduler.LoopTasks, func(a *app) scheduler.Role { return a.producer() })
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the validator once against the task in progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd.Context(), cmd.OutOrStdout(), scheduler.LoopTasks, func(a *app) scheduler.Role { return a.validator() })
	},
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Run the tuner once: perturb the artifact parameter and checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd.Context(), cmd.OutOrStdout(), scheduler.LoopTune, func(a *app) scheduler.Role { return a.tuner() })
	},
}

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Run the quality check once; a failure reverts the last checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd.Context(), cmd.OutOrStdout(), scheduler.LoopTune, func(a *app) scheduler.Role { return a.quality() })
	},
}

// runRole runs a single role as a one-role round so the outcome is
// journaled like any loop cycle.
func runRole(ctx context.Context, out io.Writer, loop string, build func(*app) scheduler.Role) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	l := scheduler.New(scheduler.Config{
		Name:           loop,
		Roles:          []scheduler.Role{build(a)},
		Journal:        a.schedulerJournal(),
		RetryWarnAfter: a.cfg.Schedule.RetryWarnAfter,
	}, a.log.For(logging.CategoryScheduler))

	outcomes := l.Round(ctx, 1)
	for _, o := range outcomes {
		printOutcome(out, o)
	}
	return nil
}

func printOutcome(w io.Writer, o agents.Outcome) {
	line := fmt.Sprintf("%s: %s", o.Role, o)
	if o.Subject != "" {
		line += fmt.Sprintf(" %q", o.Subject)
	}
	if o.Detail != "" {
		line += " (" + o.Detail + ")"
	}
	if o.Reverted {
		line += " [reverted]"
	}
	fmt.Fprintln(w, line)
}
