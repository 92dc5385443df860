// Package config handles configuration and the .autonomy directory layout.
// Every workspace driven by autonomy gets a .autonomy/ folder holding
// config.yaml, the log files and the cycle history database.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the per-workspace state directory.
	Dir = ".autonomy"

	// FileName is the config file inside Dir.
	FileName = "config.yaml"
)

// Config holds all autonomy configuration.
type Config struct {
	Backlog    BacklogConfig    `yaml:"backlog"`
	Artifact   ArtifactConfig   `yaml:"artifact"`
	Tuning     TuningConfig     `yaml:"tuning"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Oracle     OracleConfig     `yaml:"oracle"`
	History    HistoryConfig    `yaml:"history"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BacklogConfig locates the task ledger.
type BacklogConfig struct {
	Path string `yaml:"path"`
}

// ArtifactConfig locates the file the producer and tuner mutate.
type ArtifactConfig struct {
	Path string `yaml:"path"`
}

// TuningConfig describes the single tunable parameter.
type TuningConfig struct {
	Keyword   string  `yaml:"keyword"`   // declaration keyword, e.g. "double"
	Parameter string  `yaml:"parameter"` // parameter name, e.g. "energy_decay"
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Step      float64 `yaml:"step"`      // max absolute perturbation per cycle
	Precision int     `yaml:"precision"` // decimal places written back
	Seed      uint64  `yaml:"seed"`      // 0 = time-based
}

// ScheduleConfig configures loop cadence.
type ScheduleConfig struct {
	TaskInterval        string `yaml:"task_interval"`
	TuneInterval        string `yaml:"tune_interval"`
	WakeOnBacklogChange bool   `yaml:"wake_on_backlog_change"`
	RetryWarnAfter      int    `yaml:"retry_warn_after"` // 0 disables the warning
}

// CheckpointConfig selects and configures the checkpoint store.
type CheckpointConfig struct {
	Backend string `yaml:"backend"` // git, snapshot
	Binary  string `yaml:"binary"`
	Timeout string `yaml:"timeout"`
}

// OracleConfig holds the pass/fail commands. An empty command always passes.
type OracleConfig struct {
	ValidateCommand string `yaml:"validate_command"`
	QualityCommand  string `yaml:"quality_command"`
	Timeout         string `yaml:"timeout"`
}

// HistoryConfig configures the cycle journal.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite (pure Go), sqlite3 (cgo)
	Path    string `yaml:"path"`
}

// ExecutionConfig configures the tactile executor.
type ExecutionConfig struct {
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
	MaxOutputBytes int64    `yaml:"max_output_bytes"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // console, json
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backlog: BacklogConfig{
			Path: "backlog.md",
		},
		Artifact: ArtifactConfig{
			Path: "brain.cpp",
		},
		Tuning: TuningConfig{
			Keyword:   "double",
			Parameter: "energy_decay",
			Min:       0.0001,
			Max:       0.01,
			Step:      0.0005,
			Precision: 6,
		},
		Schedule: ScheduleConfig{
			TaskInterval:   "10s",
			TuneInterval:   "60s",
			RetryWarnAfter: 3,
		},
		Checkpoint: CheckpointConfig{
			Backend: "git",
			Binary:  "git",
			Timeout: "60s",
		},
		Oracle: OracleConfig{
			Timeout: "10m",
		},
		History: HistoryConfig{
			Enabled: true,
			Driver:  "sqlite",
			Path:    filepath.Join(Dir, "history.db"),
		},
		Execution: ExecutionConfig{
			AllowedEnvVars: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "GIT_AUTHOR_NAME", "GIT_AUTHOR_EMAIL", "GIT_COMMITTER_NAME", "GIT_COMMITTER_EMAIL"},
			MaxOutputBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(Dir, "logs", "autonomy.log"),
		},
	}
}

// DefaultPath returns the config file location for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, Dir, FileName)
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AUTONOMY_BACKLOG"); v != "" {
		c.Backlog.Path = v
	}
	if v := os.Getenv("AUTONOMY_ARTIFACT"); v != "" {
		c.Artifact.Path = v
	}
	if v := os.Getenv("AUTONOMY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AUTONOMY_CHECKPOINT_BACKEND"); v != "" {
		c.Checkpoint.Backend = v
	}
	if v := os.Getenv("AUTONOMY_HISTORY_DB"); v != "" {
		c.History.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backlog.Path) == "" {
		return fmt.Errorf("backlog.path is required")
	}
	if strings.TrimSpace(c.Artifact.Path) == "" {
		return fmt.Errorf("artifact.path is required")
	}
	if c.Tuning.Parameter == "" || c.Tuning.Keyword == "" {
		return fmt.Errorf("tuning.keyword and tuning.parameter are required")
	}
	if c.Tuning.Min > c.Tuning.Max {
		return fmt.Errorf("tuning.min (%g) must not exceed tuning.max (%g)", c.Tuning.Min, c.Tuning.Max)
	}
	if c.Tuning.Step < 0 {
		return fmt.Errorf("tuning.step must be >= 0")
	}
	if c.Tuning.Precision < 0 || c.Tuning.Precision > 17 {
		return fmt.Errorf("tuning.precision must be between 0 and 17")
	}
	switch c.Checkpoint.Backend {
	case "git", "snapshot":
	default:
		return fmt.Errorf("invalid checkpoint backend: %s (valid: git, snapshot)", c.Checkpoint.Backend)
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case "sqlite", "sqlite3":
		default:
			return fmt.Errorf("invalid history driver: %s (valid: sqlite, sqlite3)", c.History.Driver)
		}
	}
	return nil
}

// Resolve returns p made absolute against workspace.
func Resolve(workspace, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// GetTaskInterval returns the task loop cadence.
func (c *Config) GetTaskInterval() time.Duration {
	return parseDuration(c.Schedule.TaskInterval, 10*time.Second)
}

// GetTuneInterval returns the tune loop cadence.
func (c *Config) GetTuneInterval() time.Duration {
	return parseDuration(c.Schedule.TuneInterval, 60*time.Second)
}

// GetCheckpointTimeout returns the per-command checkpoint timeout.
func (c *Config) GetCheckpointTimeout() time.Duration {
	return parseDuration(c.Checkpoint.Timeout, 60*time.Second)
}

// GetOracleTimeout returns the oracle command timeout.
func (c *Config) GetOracleTimeout() time.Duration {
	return parseDuration(c.Oracle.Timeout, 10*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Init creates the .autonomy directory and writes a default config file if
// none exists. It returns the config path.
func Init(workspace string) (string, error) {
	for _, dir := range []string{
		filepath.Join(workspace, Dir),
		filepath.Join(workspace, Dir, "logs"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	path := DefaultPath(workspace)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := DefaultConfig().Save(path); err != nil {
		return "", err
	}
	return path, nil
}
