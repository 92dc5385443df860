package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autonomy/internal/tactile"

	"go.uber.org/zap"
)

// GitStore checkpoints a workspace with the git CLI. Reverts add a new
// reverting commit; history is never rewritten.
type GitStore struct {
	exec      tactile.Executor
	workspace string
	binary    string
	timeout   time.Duration
	exclude   []string
	log       *zap.Logger
}

// GitOption configures a GitStore.
type GitOption func(*GitStore)

// WithBinary overrides the git executable.
func WithBinary(binary string) GitOption {
	return func(g *GitStore) {
		if binary != "" {
			g.binary = binary
		}
	}
}

// WithTimeout sets the per-invocation timeout.
func WithTimeout(d time.Duration) GitOption {
	return func(g *GitStore) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithExclude keeps workspace-relative paths out of every checkpoint. Git
// pathspec wildcards are allowed.
func WithExclude(paths ...string) GitOption {
	return func(g *GitStore) {
		for _, p := range paths {
			if p != "" {
				g.exclude = append(g.exclude, p)
			}
		}
	}
}

// NewGitStore creates a git-backed store rooted at workspace.
func NewGitStore(exec tactile.Executor, workspace string, log *zap.Logger, opts ...GitOption) *GitStore {
	if log == nil {
		log = zap.NewNop()
	}
	g := &GitStore{
		exec:      exec,
		workspace: workspace,
		binary:    "git",
		timeout:   60 * time.Second,
		log:       log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Commit stages everything outside the excluded paths and commits it.
// "Nothing to commit" surfaces as an error like any other git failure.
func (g *GitStore) Commit(ctx context.Context, message string) error {
	if _, err := g.run(ctx, "", g.addArgs()...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	// -F - reads the message from stdin.
	if _, err := g.run(ctx, message, "commit", "-F", "-"); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	g.log.Info("checkpoint committed", zap.String("message", message))
	return nil
}

// RevertLast reverts HEAD without opening an editor.
func (g *GitStore) RevertLast(ctx context.Context) error {
	if _, err := g.run(ctx, "", "rev-parse", "--verify", "HEAD"); err != nil {
		return fmt.Errorf("%w: %v", ErrNothingToRevert, err)
	}
	if _, err := g.run(ctx, "", "revert", "--no-edit", "HEAD"); err != nil {
		return fmt.Errorf("git revert: %w", err)
	}
	g.log.Info("checkpoint reverted")
	return nil
}

// Head returns the current commit hash.
func (g *GitStore) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *GitStore) addArgs() []string {
	args := []string{"add", "-A"}
	if len(g.exclude) == 0 {
		return args
	}
	args = append(args, "--", ".")
	for _, p := range g.exclude {
		args = append(args, ":(exclude)"+p)
	}
	return args
}

func (g *GitStore) run(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := tactile.Command{
		Binary:           g.binary,
		Arguments:        args,
		WorkingDirectory: g.workspace,
		Stdin:            stdin,
		Limits:           &tactile.ResourceLimits{TimeoutMs: g.timeout.Milliseconds()},
	}
	result, err := g.exec.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}
	if result.IsError() {
		return result.Output(), fmt.Errorf("%s: %s", cmd.CommandString(), result.Error)
	}
	if result.Killed {
		return result.Output(), fmt.Errorf("%s: %s", cmd.CommandString(), result.KillReason)
	}
	if result.ExitCode != 0 {
		g.log.Debug("git exited non-zero",
			zap.Strings("args", args),
			zap.Int("exit", result.ExitCode),
			zap.String("output", result.Output()))
		return result.Output(), fmt.Errorf("%s exited %d: %s", cmd.CommandString(), result.ExitCode, strings.TrimSpace(result.Output()))
	}
	return result.Stdout, nil
}
