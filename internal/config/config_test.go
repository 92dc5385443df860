package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AUTONOMY_BACKLOG", "AUTONOMY_ARTIFACT", "AUTONOMY_LOG_LEVEL",
		"AUTONOMY_CHECKPOINT_BACKEND", "AUTONOMY_HISTORY_DB",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "backlog.md", cfg.Backlog.Path)
	assert.Equal(t, "energy_decay", cfg.Tuning.Parameter)
	assert.Equal(t, 0.0001, cfg.Tuning.Min)
	assert.Equal(t, 0.01, cfg.Tuning.Max)
	assert.Equal(t, 6, cfg.Tuning.Precision)
	assert.Equal(t, 10*time.Second, cfg.GetTaskInterval())
	assert.Equal(t, 60*time.Second, cfg.GetTuneInterval())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".autonomy", "config.yaml")

	cfg := DefaultConfig()
	cfg.Checkpoint.Backend = "snapshot"
	cfg.Tuning.Step = 0.02
	cfg.Oracle.QualityCommand = "docker compose build brain_replica"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", loaded.Checkpoint.Backend)
	assert.Equal(t, 0.02, loaded.Tuning.Step)
	assert.Equal(t, "docker compose build brain_replica", loaded.Oracle.QualityCommand)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  task_interval: 2s\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.GetTaskInterval())
	assert.Equal(t, "brain.cpp", cfg.Artifact.Path)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backlog: [oops"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTONOMY_BACKLOG", "tasks.md")
	t.Setenv("AUTONOMY_CHECKPOINT_BACKEND", "snapshot")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tasks.md", cfg.Backlog.Path)
	assert.Equal(t, "snapshot", cfg.Checkpoint.Backend)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty backlog", func(c *Config) { c.Backlog.Path = "" }},
		{"empty artifact", func(c *Config) { c.Artifact.Path = " " }},
		{"inverted bounds", func(c *Config) { c.Tuning.Min, c.Tuning.Max = 1, 0 }},
		{"negative step", func(c *Config) { c.Tuning.Step = -1 }},
		{"bad backend", func(c *Config) { c.Checkpoint.Backend = "svn" }},
		{"bad driver", func(c *Config) { c.History.Driver = "postgres" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedule.TaskInterval = "soon"
	cfg.Checkpoint.Timeout = "-5s"
	assert.Equal(t, 10*time.Second, cfg.GetTaskInterval())
	assert.Equal(t, 60*time.Second, cfg.GetCheckpointTimeout())
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("/ws", "backlog.md"), Resolve("/ws", "backlog.md"))
	assert.Equal(t, "/abs/backlog.md", Resolve("/ws", "/abs/backlog.md"))
	assert.Equal(t, "", Resolve("/ws", ""))
}

func TestInit_Idempotent(t *testing.T) {
	ws := t.TempDir()

	path, err := Init(ws)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.DirExists(t, filepath.Join(ws, Dir, "logs"))

	require.NoError(t, os.WriteFile(path, []byte("backlog:\n  path: custom.md\n"), 0644))
	_, err = Init(ws)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "custom.md")
}
