// Package backlog reads and rewrites the markdown task ledger.
//
// The ledger is a plain text file with one task per line:
//
//	- [ ] [Cognition] Add decay factor to emotional states
//	- [/] [Frontend] Dark mode toggle
//	- [x] [NLU] Intent classifier
//
// Any other line (headings, prose, blank lines) is inert. Transitions
// rewrite only the marker of the first matching line and leave every other
// byte of the file untouched.
package backlog

import "fmt"

// Status is a task's lifecycle position.
type Status int

const (
	Pending Status = iota
	InProgress
	Done
)

// Persisted markers.
const (
	MarkerPending    = "[ ]"
	MarkerInProgress = "[/]"
	MarkerDone       = "[x]"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{Pending, InProgress, Done}

// Marker returns the persisted marker for s.
func (s Status) Marker() string {
	switch s {
	case Pending:
		return MarkerPending
	case InProgress:
		return MarkerInProgress
	case Done:
		return MarkerDone
	default:
		return ""
	}
}

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in_progress"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	return s >= Pending && s <= Done
}

// ParseMarker is the inverse of Marker.
func ParseMarker(marker string) (Status, bool) {
	switch marker {
	case MarkerPending:
		return Pending, true
	case MarkerInProgress:
		return InProgress, true
	case MarkerDone:
		return Done, true
	default:
		return 0, false
	}
}
