// Package agents implements the four cooperating roles.
//
// The task roles advance the backlog:
//   - Producer picks the first pending task, marks it in progress, produces
//     it and checkpoints the result
//   - Validator checks the first in-progress task and either completes it
//     or reverts the checkpoint and requeues it
//
// The tune roles evolve the artifact parameter:
//   - Tuner nudges the parameter within its bounds and checkpoints
//   - Quality checks the workspace and reverts the last checkpoint on failure
//
// Every role runs one cycle at a time and reports an explicit Outcome.
package agents

import (
	"context"
	"fmt"

	"autonomy/internal/backlog"
)

// Role names.
const (
	RoleProducer  = "producer"
	RoleValidator = "validator"
	RoleTuner     = "tuner"
	RoleQuality   = "quality"
)

// Kind is the three-valued result of a cycle.
type Kind int

const (
	NoOp Kind = iota
	Success
	Failure
)

func (k Kind) String() string {
	switch k {
	case NoOp:
		return "noop"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is what a role reports for one cycle.
type Outcome struct {
	Kind     Kind
	Role     string
	Subject  string // task text or parameter name
	Detail   string
	Reverted bool // the last checkpoint was rolled back
}

func (o Outcome) String() string {
	return o.Kind.String()
}

// Failed reports whether the cycle failed.
func (o Outcome) Failed() bool {
	return o.Kind == Failure
}

func noop(role, subject, detail string) Outcome {
	return Outcome{Kind: NoOp, Role: role, Subject: subject, Detail: detail}
}

func success(role, subject, detail string) Outcome {
	return Outcome{Kind: Success, Role: role, Subject: subject, Detail: detail}
}

func failure(role, subject, detail string, reverted bool) Outcome {
	return Outcome{Kind: Failure, Role: role, Subject: subject, Detail: detail, Reverted: reverted}
}

// Ledger is the subset of the backlog the task roles need.
type Ledger interface {
	FindFirstByStatus(status backlog.Status) (backlog.Task, bool)
	Transition(text string, from, to backlog.Status) (bool, error)
}

// Oracle is the pass/fail judgement used by Validator and Quality. An error
// counts as a failed check.
type Oracle interface {
	Check(ctx context.Context) (passed bool, detail string, err error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context) (bool, string, error)

// Check calls f.
func (f OracleFunc) Check(ctx context.Context) (bool, string, error) {
	return f(ctx)
}
