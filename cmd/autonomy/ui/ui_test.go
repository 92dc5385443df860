package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"autonomy/internal/backlog"
	"autonomy/internal/history"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleTable(t *testing.T) {
	table := NewSimpleTable("Tasks", []string{"Status", "Task"})
	assert.Empty(t, table.View(DefaultStyles()))

	table.AddRow("pending", "[Cognition] Add decay factor")
	view := table.View(DefaultStyles())

	assert.Contains(t, view, "Tasks")
	assert.Contains(t, view, "Status")
	assert.Contains(t, view, "[Cognition] Add decay factor")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "15;0")
	assert.True(t, DetectTheme().IsDark)

	t.Setenv("COLORFGBG", "")
	t.Setenv("AUTONOMY_DARK_MODE", "")
	assert.False(t, DetectTheme().IsDark)
}

func TestDashboard_SnapshotUpdatesView(t *testing.T) {
	snap := Snapshot{
		Counts:    backlog.Counts{Pending: 4, InProgress: 1, Done: 7},
		Current:   "[NLU] Improve entity extraction accuracy",
		Parameter: "energy_decay",
		Value:     "0.002000",
		Outcomes: []history.Entry{
			{Loop: "tasks", Cycle: 3, Role: "validator", Outcome: "failure", Subject: "flaky", Reverted: true, CreatedAt: time.Now()},
		},
		TakenAt: time.Now(),
	}
	m := NewDashboard(func() (Snapshot, error) { return snap, nil }, time.Second)

	msg := m.fetch()
	next, _ := m.Update(msg)
	view := next.View()

	assert.Contains(t, view, "7")
	assert.Contains(t, view, "energy_decay")
	assert.Contains(t, view, "0.002000")
	assert.Contains(t, view, "[NLU] Improve entity extraction accuracy")
	assert.Contains(t, view, "flaky (reverted)")
}

func TestDashboard_ErrorKeepsLastSnapshot(t *testing.T) {
	calls := 0
	m := NewDashboard(func() (Snapshot, error) {
		calls++
		if calls > 1 {
			return Snapshot{}, errors.New("disk gone")
		}
		return Snapshot{Current: "task one"}, nil
	}, time.Second)

	next, _ := m.Update(m.fetch())
	d := next.(Dashboard)
	next, _ = d.Update(d.fetch())

	view := next.View()
	assert.Contains(t, view, "task one")
	assert.Contains(t, view, "refresh failed: disk gone")
}

func TestDashboard_Keys(t *testing.T) {
	m := NewDashboard(func() (Snapshot, error) { return Snapshot{}, nil }, time.Second)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	_, ok = cmd().(snapshotMsg)
	assert.True(t, ok)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.True(t, strings.Contains(next.View(), "autonomy dashboard"))
}
