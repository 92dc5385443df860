// Package scheduler drives the roles in fixed rounds: producer then
// validator for the task loop, tuner then quality for the tune loop. A
// round always runs to completion; cancellation is only observed between
// rounds.
package scheduler

import (
	"context"
	"time"

	"autonomy/internal/agents"
	"autonomy/internal/history"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Loop names.
const (
	LoopTasks = "tasks"
	LoopTune  = "tune"
)

// Role is one participant in a round.
type Role interface {
	Name() string
	Run(ctx context.Context, cycle int) agents.Outcome
}

// Journal persists outcomes. *history.Store satisfies it.
type Journal interface {
	Record(ctx context.Context, e history.Entry) error
	FailureCount(ctx context.Context, role, subject string) (int, error)
}

// Config configures a Loop.
type Config struct {
	Name     string
	Roles    []Role
	Interval time.Duration

	// MaxCycles stops the loop after that many rounds. 0 runs forever.
	MaxCycles int

	// Wake cuts the sleep between rounds short.
	Wake <-chan struct{}

	// Journal is optional.
	Journal Journal

	// RetryWarnAfter logs a warning once a task has failed validation this
	// many times. 0 disables it.
	RetryWarnAfter int
}

// Loop runs rounds on a cadence.
type Loop struct {
	cfg   Config
	log   *zap.Logger
	runID string
	cycle int
}

// New creates a loop. Each loop gets its own run ID.
func New(cfg Config, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	runID := uuid.NewString()
	return &Loop{
		cfg:   cfg,
		log:   log.With(zap.String("loop", cfg.Name), zap.String("run_id", runID)),
		runID: runID,
	}
}

// NewTaskLoop pairs a producer with a validator.
func NewTaskLoop(producer, validator Role, cfg Config, log *zap.Logger) *Loop {
	cfg.Name = LoopTasks
	cfg.Roles = []Role{producer, validator}
	return New(cfg, log)
}

// NewTuneLoop pairs a tuner with a quality check.
func NewTuneLoop(tuner, quality Role, cfg Config, log *zap.Logger) *Loop {
	cfg.Name = LoopTune
	cfg.Roles = []Role{tuner, quality}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return New(cfg, log)
}

// RunID identifies this loop's records.
func (l *Loop) RunID() string { return l.runID }

// Cycles returns how many rounds have completed.
func (l *Loop) Cycles() int { return l.cycle }

// Round runs every role once, in order, and journals the outcomes.
func (l *Loop) Round(ctx context.Context, cycle int) []agents.Outcome {
	outcomes := make([]agents.Outcome, 0, len(l.cfg.Roles))
	for _, role := range l.cfg.Roles {
		out := role.Run(ctx, cycle)
		if out.Role == "" {
			out.Role = role.Name()
		}
		l.log.Info("role finished",
			zap.Int("cycle", cycle),
			zap.String("role", out.Role),
			zap.Stringer("outcome", out),
			zap.String("subject", out.Subject),
			zap.String("detail", out.Detail),
			zap.Bool("reverted", out.Reverted))
		l.record(ctx, cycle, out)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Run loops until ctx is cancelled or MaxCycles is reached. Roles receive a
// context that is never cancelled so an interrupt can't split a round.
func (l *Loop) Run(ctx context.Context) error {
	roleCtx := context.WithoutCancel(ctx)
	l.log.Info("loop started", zap.Duration("interval", l.cfg.Interval), zap.Int("max_cycles", l.cfg.MaxCycles))

	timer := time.NewTimer(l.cfg.Interval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			l.log.Info("loop interrupted", zap.Int("cycles", l.cycle))
			return nil
		}

		l.cycle++
		l.Round(roleCtx, l.cycle)

		if l.cfg.MaxCycles > 0 && l.cycle >= l.cfg.MaxCycles {
			l.log.Info("loop finished", zap.Int("cycles", l.cycle))
			return nil
		}

		timer.Reset(l.cfg.Interval)
		select {
		case <-ctx.Done():
			l.log.Info("loop interrupted", zap.Int("cycles", l.cycle))
			return nil
		case <-timer.C:
		case <-l.cfg.Wake:
			l.log.Debug("woken early")
			timer.Stop()
		}
	}
}

func (l *Loop) record(ctx context.Context, cycle int, out agents.Outcome) {
	if l.cfg.Journal == nil {
		return
	}
	err := l.cfg.Journal.Record(ctx, history.Entry{
		RunID:    l.runID,
		Loop:     l.cfg.Name,
		Cycle:    cycle,
		Role:     out.Role,
		Outcome:  out.String(),
		Subject:  out.Subject,
		Detail:   out.Detail,
		Reverted: out.Reverted,
	})
	if err != nil {
		l.log.Warn("failed to journal outcome", zap.Error(err))
		return
	}

	if out.Role != agents.RoleValidator || !out.Failed() || l.cfg.RetryWarnAfter <= 0 {
		return
	}
	n, err := l.cfg.Journal.FailureCount(ctx, out.Role, out.Subject)
	if err != nil {
		l.log.Warn("failed to count failures", zap.Error(err))
		return
	}
	if n >= l.cfg.RetryWarnAfter {
		l.log.Warn("task keeps failing validation",
			zap.String("task", out.Subject),
			zap.Int("failures", n))
	}
}
