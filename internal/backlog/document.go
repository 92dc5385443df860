package backlog

import (
	"regexp"
	"strings"
)

// taskLine matches "- <marker> <text>" with optional indentation.
var taskLine = regexp.MustCompile(`^(\s*- )(\[ \]|\[/\]|\[x\]) (.*)$`)

// categoryTag captures a leading "[Word]" tag in task text.
var categoryTag = regexp.MustCompile(`^\[([^\]\s][^\]]*)\]`)

// Task is one ledger entry. Text is its identity.
type Task struct {
	Text     string
	Status   Status
	Category string
	Line     int
}

// Counts tallies tasks per status.
type Counts struct {
	Pending    int
	InProgress int
	Done       int
}

// Total returns the number of tasks.
func (c Counts) Total() int {
	return c.Pending + c.InProgress + c.Done
}

type entry struct {
	line     int
	markerAt int
	task     Task
}

// Document is a parsed ledger that keeps the raw bytes of every line.
type Document struct {
	lines   []string
	entries []entry
}

// Parse splits data into lines and recognises task lines. It never fails;
// lines that don't look like tasks are carried through untouched.
func Parse(data []byte) *Document {
	doc := &Document{lines: strings.Split(string(data), "\n")}
	for i, raw := range doc.lines {
		line := strings.TrimSuffix(raw, "\r")
		m := taskLine.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		status, _ := ParseMarker(line[m[4]:m[5]])
		text := strings.TrimSpace(line[m[6]:m[7]])
		if text == "" {
			continue
		}
		doc.entries = append(doc.entries, entry{
			line:     i,
			markerAt: m[4],
			task: Task{
				Text:     text,
				Status:   status,
				Category: CategoryOf(text),
				Line:     i,
			},
		})
	}
	return doc
}

// CategoryOf returns the leading [Tag] of a task text, or "".
func CategoryOf(text string) string {
	m := categoryTag.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// Bytes serialises the document. An untouched document round-trips exactly.
func (d *Document) Bytes() []byte {
	return []byte(strings.Join(d.lines, "\n"))
}

// Tasks returns the tasks in file order.
func (d *Document) Tasks() []Task {
	tasks := make([]Task, len(d.entries))
	for i, e := range d.entries {
		tasks[i] = e.task
	}
	return tasks
}

// FindFirst returns the first task with the given status.
func (d *Document) FindFirst(status Status) (Task, bool) {
	for _, e := range d.entries {
		if e.task.Status == status {
			return e.task, true
		}
	}
	return Task{}, false
}

// Transition moves the first task matching (from, text) to to. Only the
// marker bytes of that line change. It returns false when nothing matched.
func (d *Document) Transition(text string, from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	text = strings.TrimSpace(text)
	for i := range d.entries {
		e := &d.entries[i]
		if e.task.Status != from || e.task.Text != text {
			continue
		}
		d.setStatus(i, to)
		return true
	}
	return false
}

// setStatus swaps the marker of entry i in place. All markers are three
// bytes wide so the rest of the line keeps its offsets.
func (d *Document) setStatus(i int, to Status) {
	e := &d.entries[i]
	raw := d.lines[e.line]
	d.lines[e.line] = raw[:e.markerAt] + to.Marker() + raw[e.markerAt+len(e.task.Status.Marker()):]
	e.task.Status = to
}

// Counts tallies the document's tasks by status.
func (d *Document) Counts() Counts {
	var c Counts
	for _, e := range d.entries {
		switch e.task.Status {
		case Pending:
			c.Pending++
		case InProgress:
			c.InProgress++
		case Done:
			c.Done++
		}
	}
	return c
}
