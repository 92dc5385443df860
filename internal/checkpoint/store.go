// Package checkpoint records labeled snapshots of the workspace and undoes the
// most recent one. History is linear: RevertLast always targets the latest
// checkpoint, restoring the backlog and the artifact together.
package checkpoint

import (
	"context"
	"errors"
)

// ErrNothingToRevert is returned when RevertLast has no checkpoint to undo.
var ErrNothingToRevert = errors.New("checkpoint: nothing to revert")

// Store is the version-control seam used by the roles.
type Store interface {
	// Commit captures the current workspace state under message.
	Commit(ctx context.Context, message string) error

	// RevertLast undoes exactly the most recent checkpoint.
	RevertLast(ctx context.Context) error
}

// Backend names as written in config.
const (
	BackendGit      = "git"
	BackendSnapshot = "snapshot"
)
