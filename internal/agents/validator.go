package agents

import (
	"context"

	"autonomy/internal/backlog"
	"autonomy/internal/checkpoint"

	"go.uber.org/zap"
)

// Validator judges the first in-progress task.
type Validator struct {
	ledger Ledger
	store  checkpoint.Store
	oracle Oracle
	log    *zap.Logger
}

// NewValidator creates a Validator.
func NewValidator(ledger Ledger, store checkpoint.Store, oracle Oracle, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{ledger: ledger, store: store, oracle: oracle, log: log}
}

// Name returns the role name.
func (v *Validator) Name() string { return RoleValidator }

// Run executes one validation cycle. A failed check reverts the last
// checkpoint and puts the task back to pending; there is no retry limit.
func (v *Validator) Run(ctx context.Context, cycle int) Outcome {
	log := v.log.With(zap.Int("cycle", cycle))

	task, ok := v.ledger.FindFirstByStatus(backlog.InProgress)
	if !ok {
		log.Debug("nothing to validate")
		return noop(RoleValidator, "", "no task in progress")
	}
	log = log.With(zap.String("task", task.Text))

	passed, detail, err := check(ctx, v.oracle)
	if err != nil {
		log.Warn("oracle error", zap.Error(err))
	}

	if passed {
		moved, err := v.ledger.Transition(task.Text, backlog.InProgress, backlog.Done)
		if err != nil {
			log.Error("failed to complete task", zap.Error(err))
			return failure(RoleValidator, task.Text, "ledger update failed: "+err.Error(), false)
		}
		if !moved {
			log.Info("task no longer in progress")
			return noop(RoleValidator, task.Text, "task changed before it could be completed")
		}
		log.Info("task validated", zap.String("detail", detail))
		return success(RoleValidator, task.Text, detail)
	}

	log.Warn("validation failed, reverting", zap.String("detail", detail))
	reverted := true
	if err := v.store.RevertLast(ctx); err != nil {
		log.Error("checkpoint revert failed", zap.Error(err))
		reverted, detail = false, withRevertError(detail, err)
	}
	if _, err := v.ledger.Transition(task.Text, backlog.InProgress, backlog.Pending); err != nil {
		log.Error("failed to requeue task", zap.Error(err))
	}
	return failure(RoleValidator, task.Text, detail, reverted)
}

// check runs the oracle, folding an error into a failed result.
func check(ctx context.Context, oracle Oracle) (bool, string, error) {
	if oracle == nil {
		return true, "no oracle configured", nil
	}
	passed, detail, err := oracle.Check(ctx)
	if err != nil {
		if detail == "" {
			detail = err.Error()
		}
		return false, detail, err
	}
	return passed, detail, nil
}

// withRevertError notes a failed rollback in an outcome's detail.
func withRevertError(detail string, err error) string {
	note := "revert failed: " + err.Error()
	if detail == "" {
		return note
	}
	return detail + "; " + note
}
