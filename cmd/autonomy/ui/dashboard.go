package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"autonomy/internal/backlog"
	"autonomy/internal/history"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Snapshot is what the dashboard shows at one point in time.
type Snapshot struct {
	Counts    backlog.Counts
	Current   string // first in-progress task, if any
	Parameter string
	Value     string // formatted value, or a reason it's unavailable
	Outcomes  []history.Entry
	TakenAt   time.Time
}

// Source produces fresh snapshots.
type Source func() (Snapshot, error)

type snapshotMsg struct {
	snap Snapshot
	err  error
}

type tickMsg time.Time

// Dashboard is a bubbletea model that polls a Source.
type Dashboard struct {
	source   Source
	interval time.Duration
	styles   Styles
	table    table.Model

	snap   Snapshot
	err    error
	width  int
	height int
}

// NewDashboard creates the dashboard model.
func NewDashboard(source Source, interval time.Duration) Dashboard {
	if interval <= 0 {
		interval = time.Second
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 8},
			{Title: "Loop", Width: 6},
			{Title: "Cycle", Width: 6},
			{Title: "Role", Width: 10},
			{Title: "Outcome", Width: 8},
			{Title: "Subject", Width: 48},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	return Dashboard{source: source, interval: interval, styles: DefaultStyles(), table: t}
}

// Init fetches the first snapshot and starts polling.
func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.fetch, m.tick())
}

func (m Dashboard) fetch() tea.Msg {
	snap, err := m.source()
	return snapshotMsg{snap: snap, err: err}
}

func (m Dashboard) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages.
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetch
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(max(3, msg.Height-12))
	case tickMsg:
		return m, tea.Batch(m.fetch, m.tick())
	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.table.SetRows(outcomeRows(msg.snap.Outcomes))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func outcomeRows(entries []history.Entry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		subject := e.Subject
		if e.Reverted {
			subject += " (reverted)"
		}
		rows = append(rows, table.Row{
			e.CreatedAt.Format("15:04:05"),
			e.Loop,
			strconv.Itoa(e.Cycle),
			e.Role,
			e.Outcome,
			Truncate(subject, 48),
		})
	}
	return rows
}

// View renders the dashboard.
func (m Dashboard) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Header.Render("autonomy dashboard"))
	b.WriteString("\n\n")

	c := m.snap.Counts
	counts := lipgloss.JoinHorizontal(lipgloss.Top,
		s.Panel.Render(s.Muted.Render("pending ")+s.Bold.Render(strconv.Itoa(c.Pending))),
		s.Panel.Render(s.Muted.Render("in progress ")+s.Warning.Render(strconv.Itoa(c.InProgress))),
		s.Panel.Render(s.Muted.Render("done ")+s.Success.Render(strconv.Itoa(c.Done))),
		s.Panel.Render(s.Muted.Render(m.snap.Parameter+" ")+s.Info.Render(m.snap.Value)),
	)
	b.WriteString(counts)
	b.WriteString("\n")

	current := m.snap.Current
	if current == "" {
		current = s.Muted.Render("idle")
	}
	b.WriteString(s.Title.Render("Current: ") + s.Body.Render(current))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(s.Error.Render(fmt.Sprintf("refresh failed: %v", m.err)))
		b.WriteString("\n")
	}
	footer := "q quit · r refresh"
	if !m.snap.TakenAt.IsZero() {
		footer += " · updated " + m.snap.TakenAt.Format("15:04:05")
	}
	b.WriteString(s.Footer.Render(footer))
	return b.String()
}
