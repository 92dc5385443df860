package agents

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"autonomy/internal/tactile"
)

// CommandOracle passes when a configured command exits 0 in the workspace.
// An empty command always passes.
type CommandOracle struct {
	Exec      tactile.Executor
	Workspace string
	Command   string
	Timeout   time.Duration
}

// Check runs the command.
func (o *CommandOracle) Check(ctx context.Context) (bool, string, error) {
	cmd, ok := tactile.ParseCommand(o.Command)
	if !ok {
		return true, "no command configured", nil
	}
	cmd.WorkingDirectory = o.Workspace
	if o.Timeout > 0 {
		cmd.Limits = &tactile.ResourceLimits{TimeoutMs: o.Timeout.Milliseconds()}
	}

	result, err := o.Exec.Execute(ctx, cmd)
	if err != nil {
		return false, "", fmt.Errorf("%s: %w", cmd.CommandString(), err)
	}
	switch {
	case result.IsError():
		return false, "", fmt.Errorf("%s: %s", cmd.CommandString(), result.Error)
	case result.Passed():
		return true, fmt.Sprintf("%s passed (%s)", cmd.CommandString(), result.Duration.Round(time.Millisecond)), nil
	case result.Killed:
		return false, fmt.Sprintf("%s killed: %s", cmd.CommandString(), result.KillReason), nil
	default:
		return false, fmt.Sprintf("%s exited %d\n%s", cmd.CommandString(), result.ExitCode, tail(result.Output(), 20)), nil
	}
}

// ArtifactOracle passes when the artifact exists and is not empty.
type ArtifactOracle struct {
	Path string
}

// Check stats the artifact.
func (o ArtifactOracle) Check(context.Context) (bool, string, error) {
	info, err := os.Stat(o.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "artifact missing", nil
		}
		return false, "", err
	}
	if info.IsDir() || info.Size() == 0 {
		return false, "artifact empty", nil
	}
	return true, "artifact present", nil
}

// AllOf passes only if every oracle passes. It stops at the first failure.
func AllOf(oracles ...Oracle) Oracle {
	return OracleFunc(func(ctx context.Context) (bool, string, error) {
		details := make([]string, 0, len(oracles))
		for _, o := range oracles {
			passed, detail, err := o.Check(ctx)
			if err != nil || !passed {
				return false, detail, err
			}
			details = append(details, detail)
		}
		return true, strings.Join(details, "; "), nil
	})
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
