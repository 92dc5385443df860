package agents

import (
	"context"

	"autonomy/internal/checkpoint"

	"go.uber.org/zap"
)

// Quality checks the whole workspace and undoes the latest checkpoint when
// the check fails.
type Quality struct {
	store  checkpoint.Store
	oracle Oracle
	log    *zap.Logger
}

// NewQuality creates a Quality role.
func NewQuality(store checkpoint.Store, oracle Oracle, log *zap.Logger) *Quality {
	if log == nil {
		log = zap.NewNop()
	}
	return &Quality{store: store, oracle: oracle, log: log}
}

// Name returns the role name.
func (q *Quality) Name() string { return RoleQuality }

// Run executes one quality cycle.
func (q *Quality) Run(ctx context.Context, cycle int) Outcome {
	log := q.log.With(zap.Int("cycle", cycle))

	passed, detail, err := check(ctx, q.oracle)
	if err != nil {
		log.Warn("oracle error", zap.Error(err))
	}
	if passed {
		log.Info("quality check passed", zap.String("detail", detail))
		return success(RoleQuality, "", detail)
	}

	log.Warn("quality check failed, applying fix", zap.String("detail", detail))
	reverted := true
	if err := q.store.RevertLast(ctx); err != nil {
		log.Error("checkpoint revert failed", zap.Error(err))
		reverted, detail = false, withRevertError(detail, err)
	}
	return failure(RoleQuality, "", detail, reverted)
}
