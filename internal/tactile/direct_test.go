package tactile

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestDirectExecutor_Echo(t *testing.T) {
	skipOnWindows(t)
	exec := NewDirectExecutor(zap.NewNop())

	result, err := exec.Execute(context.Background(), Command{
		Binary:    "echo",
		Arguments: []string{"hello"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Passed())
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello", strings.TrimSpace(result.Stdout))
	assert.NotNil(t, result.Command)
}

func TestDirectExecutor_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	exec := NewDirectExecutor(zap.NewNop())

	result, err := exec.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo broken >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success, "infrastructure worked")
	assert.False(t, result.Passed())
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Output(), "broken")
}

func TestDirectExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)
	exec := NewDirectExecutor(zap.NewNop())

	result, err := exec.Execute(context.Background(), Command{
		Binary:    "sleep",
		Arguments: []string{"5"},
		Limits:    &ResourceLimits{TimeoutMs: 100},
	})
	require.NoError(t, err)
	assert.True(t, result.Killed)
	assert.Contains(t, result.KillReason, "timeout after")
	assert.False(t, result.Passed())
	assert.Less(t, result.Duration, 5*time.Second)
}

func TestDirectExecutor_InvalidCommand(t *testing.T) {
	exec := NewDirectExecutor(zap.NewNop())

	_, err := exec.Execute(context.Background(), Command{Binary: "  "})
	assert.Error(t, err)

	result, err := exec.Execute(context.Background(), Command{Binary: "definitely-not-a-real-binary-xyz"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.IsError())
	assert.NotEmpty(t, result.Error)
}

func TestDirectExecutor_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	exec := NewDirectExecutor(zap.NewNop())

	result, err := exec.Execute(context.Background(), Command{
		Binary:           "pwd",
		WorkingDirectory: dir,
	})
	require.NoError(t, err)
	assert.Contains(t, strings.TrimSpace(result.Stdout), dir[strings.LastIndex(dir, "/")+1:])
}

func TestDirectExecutor_Environment(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("AUTONOMY_SECRET_TEST", "leak")
	exec := NewDirectExecutor(zap.NewNop())

	result, err := exec.Execute(context.Background(), Command{
		Binary:      "sh",
		Arguments:   []string{"-c", "echo \"[$AUTONOMY_SECRET_TEST][$EXTRA]\""},
		Environment: []string{"EXTRA=yes"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[][yes]", strings.TrimSpace(result.Stdout))
}

func TestExecutorConfig_Merge(t *testing.T) {
	cfg := DefaultExecutorConfig()
	cfg.MaxTimeout = time.Second

	merged := cfg.Merge(Command{Binary: "git", Limits: &ResourceLimits{TimeoutMs: 10_000}})
	assert.Equal(t, ".", merged.WorkingDirectory)
	assert.Equal(t, int64(1000), merged.Limits.TimeoutMs)
	assert.Equal(t, cfg.MaxOutputBytes, merged.Limits.MaxOutputBytes)

	original := &ResourceLimits{}
	_ = cfg.Merge(Command{Binary: "git", Limits: original})
	assert.Zero(t, original.TimeoutMs, "merge must not mutate caller limits")
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("  docker compose build brain_replica ")
	require.True(t, ok)
	assert.Equal(t, "docker", cmd.Binary)
	assert.Equal(t, []string{"compose", "build", "brain_replica"}, cmd.Arguments)
	assert.Equal(t, "docker compose build brain_replica", cmd.CommandString())

	_, ok = ParseCommand("   ")
	assert.False(t, ok)
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = lw.Write([]byte("ij"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "abcde", buf.String())
	assert.True(t, lw.truncated)
	assert.Equal(t, int64(5), lw.discarded)
}
