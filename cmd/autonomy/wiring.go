package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"autonomy/internal/agents"
	"autonomy/internal/artifact"
	"autonomy/internal/backlog"
	"autonomy/internal/checkpoint"
	"autonomy/internal/config"
	"autonomy/internal/history"
	"autonomy/internal/logging"
	"autonomy/internal/scheduler"
	"autonomy/internal/tactile"

	"go.uber.org/zap"
)

// app holds the components shared by every command.
type app struct {
	ws           string
	cfg          *config.Config
	log          *logging.Logger
	exec         tactile.Executor
	ledger       *backlog.FileLedger
	artifactPath string
	param        *artifact.Parameter
	store        checkpoint.Store
	journal      *history.Store // nil when disabled or unavailable
}

// newApp wires the workspace. Callers must Close it.
func newApp() (*app, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return nil, err
	}

	a := &app{
		ws:           ws,
		cfg:          cfg,
		log:          logger,
		artifactPath: config.Resolve(ws, cfg.Artifact.Path),
	}
	boot := a.log.For(logging.CategoryBoot)

	execCfg := tactile.DefaultExecutorConfig()
	execCfg.DefaultWorkingDir = ws
	execCfg.DefaultTimeout = cfg.GetCheckpointTimeout()
	execCfg.MaxTimeout = max(cfg.GetOracleTimeout(), cfg.GetCheckpointTimeout())
	if len(cfg.Execution.AllowedEnvVars) > 0 {
		execCfg.AllowedEnvironment = cfg.Execution.AllowedEnvVars
	}
	if cfg.Execution.MaxOutputBytes > 0 {
		execCfg.MaxOutputBytes = cfg.Execution.MaxOutputBytes
	}
	a.exec = tactile.NewDirectExecutorWithConfig(execCfg, a.log.For(logging.CategoryTactile))

	a.ledger = backlog.NewFileLedger(config.Resolve(ws, cfg.Backlog.Path), a.log.For(logging.CategoryBacklog))

	a.param, err = artifact.NewParameter(cfg.Tuning.Keyword, cfg.Tuning.Parameter,
		artifact.Bounds{Min: cfg.Tuning.Min, Max: cfg.Tuning.Max}, cfg.Tuning.Precision)
	if err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}

	a.store, err = a.newStore()
	if err != nil {
		return nil, err
	}

	if cfg.History.Enabled {
		path := config.Resolve(ws, cfg.History.Path)
		a.journal, err = history.Open(cfg.History.Driver, path, a.log.For(logging.CategoryHistory))
		if err != nil {
			boot.Warn("history disabled", zap.String("path", path), zap.Error(err))
			a.journal = nil
		}
	}

	boot.Debug("workspace ready",
		zap.String("workspace", ws),
		zap.String("backlog", a.ledger.Path()),
		zap.String("artifact", a.artifactPath),
		zap.String("checkpoint", cfg.Checkpoint.Backend))
	return a, nil
}

func (a *app) newStore() (checkpoint.Store, error) {
	log := a.log.For(logging.CategoryCheckpoint)
	switch a.cfg.Checkpoint.Backend {
	case checkpoint.BackendSnapshot:
		return checkpoint.NewSnapshotStore(log, a.ledger.Path(), a.artifactPath)
	case checkpoint.BackendGit:
		return checkpoint.NewGitStore(a.exec, a.ws, log,
			checkpoint.WithBinary(a.cfg.Checkpoint.Binary),
			checkpoint.WithTimeout(a.cfg.GetCheckpointTimeout()),
			checkpoint.WithExclude(a.stateExcludes()...)), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %s", a.cfg.Checkpoint.Backend)
	}
}

// stateExcludes lists the files this process keeps writing while it runs.
// They stay out of checkpoints so a revert never collides with them.
func (a *app) stateExcludes() []string {
	excludes := []string{config.Dir}
	for _, p := range []string{
		a.cfg.Logging.File,
		a.cfg.History.Path + "*", // -wal and -shm
	} {
		if p == "" || p == "*" {
			continue
		}
		rel, err := filepath.Rel(a.ws, config.Resolve(a.ws, p))
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, config.Dir+"/") {
			continue
		}
		excludes = append(excludes, rel)
	}
	return excludes
}

// Close releases the journal.
func (a *app) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

// schedulerJournal returns the history store, or a nil interface when
// history is off.
func (a *app) schedulerJournal() scheduler.Journal {
	if a.journal == nil {
		return nil
	}
	return a.journal
}

func (a *app) producer() *agents.Producer {
	return agents.NewProducer(a.ledger, a.store, agents.AppendNote(a.artifactPath, time.Now), a.log.For(logging.CategoryProducer))
}

func (a *app) validator() *agents.Validator {
	oracle := agents.AllOf(
		agents.ArtifactOracle{Path: a.artifactPath},
		&agents.CommandOracle{Exec: a.exec, Workspace: a.ws, Command: a.cfg.Oracle.ValidateCommand, Timeout: a.cfg.GetOracleTimeout()},
	)
	return agents.NewValidator(a.ledger, a.store, oracle, a.log.For(logging.CategoryValidator))
}

func (a *app) tuner() *agents.Tuner {
	return agents.NewTuner(a.param, a.artifactPath, a.cfg.Tuning.Step,
		agents.NewRandomPerturber(a.cfg.Tuning.Seed), a.store, a.log.For(logging.CategoryTuner))
}

func (a *app) quality() *agents.Quality {
	oracle := &agents.CommandOracle{Exec: a.exec, Workspace: a.ws, Command: a.cfg.Oracle.QualityCommand, Timeout: a.cfg.GetOracleTimeout()}
	return agents.NewQuality(a.store, oracle, a.log.For(logging.CategoryQuality))
}
