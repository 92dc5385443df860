package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autonomy/internal/backlog"
	"autonomy/internal/logging"
	"autonomy/internal/scheduler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	loopInterval time.Duration
	loopCycles   int
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Drive a scheduler loop until interrupted",
}

var loopTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Producer then validator, every interval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runLoop(ctx, scheduler.LoopTasks)
	},
}

var loopTuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Tuner then quality check, every interval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runLoop(ctx, scheduler.LoopTune)
	},
}

func init() {
	for _, c := range []*cobra.Command{loopTasksCmd, loopTuneCmd} {
		c.Flags().DurationVar(&loopInterval, "interval", 0, "Pause between rounds (default from config)")
		c.Flags().IntVar(&loopCycles, "cycles", 0, "Stop after N rounds (0 = until interrupted)")
	}
	loopCmd.AddCommand(loopTasksCmd, loopTuneCmd)
}

// runLoop runs one scheduler variant, plus the backlog watcher for the task
// loop when enabled. It returns nil on interrupt.
func runLoop(ctx context.Context, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := scheduler.Config{
		MaxCycles:      loopCycles,
		Journal:        a.schedulerJournal(),
		RetryWarnAfter: a.cfg.Schedule.RetryWarnAfter,
	}
	schedLog := a.log.For(logging.CategoryScheduler)

	var loop *scheduler.Loop
	var watcher *backlog.Watcher
	switch name {
	case scheduler.LoopTune:
		cfg.Interval = pick(loopInterval, a.cfg.GetTuneInterval())
		loop = scheduler.NewTuneLoop(a.tuner(), a.quality(), cfg, schedLog)
	default:
		cfg.Interval = pick(loopInterval, a.cfg.GetTaskInterval())
		if a.cfg.Schedule.WakeOnBacklogChange {
			watcher, err = backlog.NewWatcher(a.ledger.Path(), 0, a.log.For(logging.CategoryBacklog))
			if err != nil {
				schedLog.Warn("backlog watcher disabled", zap.Error(err))
				watcher = nil
			}
		}
		var wake chan struct{}
		if watcher != nil {
			wake = make(chan struct{}, 1)
			cfg.Wake = wake
		}
		loop = scheduler.NewTaskLoop(a.producer(), a.validator(), cfg, schedLog)
		if watcher != nil {
			return runWithWatcher(ctx, loop, watcher, a.ledger, wake, schedLog)
		}
	}

	return loop.Run(ctx)
}

// runWithWatcher runs the loop and the watcher side by side. Only edits
// made outside this process wake the loop.
func runWithWatcher(ctx context.Context, loop *scheduler.Loop, w *backlog.Watcher, ledger *backlog.FileLedger, wake chan<- struct{}, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, cancel := context.WithCancel(gctx)

	g.Go(func() error {
		defer cancel()
		return loop.Run(loopCtx)
	})
	g.Go(func() error {
		return w.Run(loopCtx)
	})
	g.Go(func() error {
		for {
			select {
			case <-loopCtx.Done():
				return nil
			case <-w.Changes():
				if !ledger.ChangedExternally() {
					continue
				}
				log.Debug("backlog edited, waking loop")
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	})
	return g.Wait()
}

func pick(flag, fallback time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return fallback
}
