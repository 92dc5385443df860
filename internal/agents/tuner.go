package agents

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"autonomy/internal/artifact"
	"autonomy/internal/checkpoint"

	"go.uber.org/zap"
)

// Perturber proposes a change to the parameter.
type Perturber interface {
	Perturb(step float64) float64
}

// RandomPerturber draws uniformly from [-step, +step].
type RandomPerturber struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPerturber seeds a PCG source. Seed 0 uses the clock.
func NewRandomPerturber(seed uint64) *RandomPerturber {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomPerturber{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Perturb returns a value in [-step, +step].
func (r *RandomPerturber) Perturb(step float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (r.rng.Float64()*2 - 1) * step
}

// FixedPerturber always returns itself, ignoring step.
type FixedPerturber float64

// Perturb returns f.
func (f FixedPerturber) Perturb(float64) float64 { return float64(f) }

// TuneMessage is the checkpoint label for a parameter change.
func TuneMessage(name, from, to string) string {
	return fmt.Sprintf("tune: %s %s -> %s", name, from, to)
}

// Tuner nudges the artifact parameter and checkpoints the change. It never
// evaluates fitness; Quality decides whether the change survives.
type Tuner struct {
	param     *artifact.Parameter
	path      string
	step      float64
	perturber Perturber
	store     checkpoint.Store
	log       *zap.Logger
}

// NewTuner creates a Tuner for the artifact at path.
func NewTuner(param *artifact.Parameter, path string, step float64, perturber Perturber, store checkpoint.Store, log *zap.Logger) *Tuner {
	if log == nil {
		log = zap.NewNop()
	}
	if perturber == nil {
		perturber = NewRandomPerturber(0)
	}
	return &Tuner{param: param, path: path, step: step, perturber: perturber, store: store, log: log}
}

// Name returns the role name.
func (t *Tuner) Name() string { return RoleTuner }

// Run executes one tuning cycle.
func (t *Tuner) Run(ctx context.Context, cycle int) Outcome {
	name := t.param.Name
	log := t.log.With(zap.Int("cycle", cycle), zap.String("parameter", name))

	info, err := os.Stat(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("artifact not found", zap.String("path", t.path))
		return noop(RoleTuner, name, "artifact not found")
	}
	if err != nil {
		log.Error("failed to stat artifact", zap.Error(err))
		return failure(RoleTuner, name, err.Error(), false)
	}
	src, err := os.ReadFile(t.path)
	if err != nil {
		log.Error("failed to read artifact", zap.Error(err))
		return failure(RoleTuner, name, err.Error(), false)
	}

	m, ok := t.param.Find(src)
	if !ok {
		log.Warn("parameter not found in artifact", zap.String("path", t.path))
		return noop(RoleTuner, name, "parameter not found")
	}

	out, value, err := t.param.Rewrite(src, m.Value+t.perturber.Perturb(t.step))
	if err != nil {
		log.Error("rewrite failed", zap.Error(err))
		return failure(RoleTuner, name, err.Error(), false)
	}
	if err := os.WriteFile(t.path, out, info.Mode().Perm()); err != nil {
		log.Error("failed to write artifact", zap.Error(err))
		return failure(RoleTuner, name, err.Error(), false)
	}

	from, to := t.param.Format(m.Value), t.param.Format(value)
	if err := t.store.Commit(ctx, TuneMessage(name, from, to)); err != nil {
		log.Warn("checkpoint commit failed", zap.Error(err))
	}
	log.Info("parameter tuned", zap.String("from", from), zap.String("to", to))
	return success(RoleTuner, name, from+" -> "+to)
}
