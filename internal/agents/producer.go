package agents

import (
	"context"
	"fmt"
	"os"
	"time"

	"autonomy/internal/backlog"
	"autonomy/internal/checkpoint"

	"go.uber.org/zap"
)

// ProducerFunc does the work for a task. It may leave partial edits behind
// when it fails; those are not cleaned up.
type ProducerFunc func(ctx context.Context, task backlog.Task) error

// AppendNote returns a ProducerFunc that appends an implementation note for
// the task to the artifact at path, creating it if needed.
func AppendNote(path string, now func() time.Time) ProducerFunc {
	if now == nil {
		now = time.Now
	}
	return func(_ context.Context, task backlog.Task) error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open artifact: %w", err)
		}
		note := fmt.Sprintf("\n// [Producer] Implemented '%s' at %s\n", task.Text, now().Format(time.RFC3339))
		if _, err := f.WriteString(note); err != nil {
			f.Close()
			return fmt.Errorf("failed to write artifact: %w", err)
		}
		return f.Close()
	}
}

// CommitMessage is the checkpoint label for a produced task.
func CommitMessage(task string) string {
	return fmt.Sprintf("feat: %s (implemented by Producer)", task)
}

// Producer advances the first pending task.
type Producer struct {
	ledger  Ledger
	store   checkpoint.Store
	produce ProducerFunc
	log     *zap.Logger
}

// NewProducer creates a Producer.
func NewProducer(ledger Ledger, store checkpoint.Store, produce ProducerFunc, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{ledger: ledger, store: store, produce: produce, log: log}
}

// Name returns the role name.
func (p *Producer) Name() string { return RoleProducer }

// Run executes one production cycle.
func (p *Producer) Run(ctx context.Context, cycle int) Outcome {
	log := p.log.With(zap.Int("cycle", cycle))

	task, ok := p.ledger.FindFirstByStatus(backlog.Pending)
	if !ok {
		log.Info("no pending tasks")
		return noop(RoleProducer, "", "no pending task")
	}
	log = log.With(zap.String("task", task.Text))

	moved, err := p.ledger.Transition(task.Text, backlog.Pending, backlog.InProgress)
	if err != nil {
		log.Warn("failed to claim task", zap.Error(err))
		return noop(RoleProducer, task.Text, "claim failed: "+err.Error())
	}
	if !moved {
		log.Info("task no longer pending")
		return noop(RoleProducer, task.Text, "task changed before it could be claimed")
	}

	if err := p.produce(ctx, task); err != nil {
		log.Error("production failed, requeueing", zap.Error(err))
		if _, rerr := p.ledger.Transition(task.Text, backlog.InProgress, backlog.Pending); rerr != nil {
			log.Error("failed to requeue task", zap.Error(rerr))
		}
		return failure(RoleProducer, task.Text, err.Error(), false)
	}

	if err := p.store.Commit(ctx, CommitMessage(task.Text)); err != nil {
		log.Warn("checkpoint commit failed", zap.Error(err))
	}
	log.Info("task produced")
	return success(RoleProducer, task.Text, "produced")
}
