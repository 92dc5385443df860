package main

import (
	"context"
	"fmt"
	"time"

	"autonomy/cmd/autonomy/ui"
	"autonomy/internal/backlog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var dashboardInterval time.Duration

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live view of the backlog, tuned parameter and recent outcomes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := tea.NewProgram(ui.NewDashboard(a.snapshot, dashboardInterval), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	dashboardCmd.Flags().DurationVar(&dashboardInterval, "refresh", time.Second, "Refresh interval")
}

// snapshot gathers everything the dashboard shows. Missing files are shown
// as empty rather than failing the refresh.
func (a *app) snapshot() (ui.Snapshot, error) {
	snap := ui.Snapshot{Parameter: a.param.Name, TakenAt: time.Now()}

	tasks, err := a.ledger.Tasks()
	if err != nil {
		return snap, err
	}
	for _, t := range tasks {
		switch t.Status {
		case backlog.Pending:
			snap.Counts.Pending++
		case backlog.InProgress:
			snap.Counts.InProgress++
			if snap.Current == "" {
				snap.Current = t.Text
			}
		case backlog.Done:
			snap.Counts.Done++
		}
	}

	if v, err := a.param.Read(a.artifactPath); err != nil {
		snap.Value = fmt.Sprintf("unavailable (%v)", err)
	} else {
		snap.Value = a.param.Format(v)
	}

	if a.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		snap.Outcomes, err = a.journal.Recent(ctx, 20)
		if err != nil {
			return snap, err
		}
	}
	return snap, nil
}
