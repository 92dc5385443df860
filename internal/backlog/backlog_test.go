package backlog

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sample = `# Backlog

Some prose with - [ ] inside a sentence.

## Cognition
- [ ] [Cognition] Add decay factor to emotional states
- [/] [Frontend] Add dark mode toggle to UI
  - [x] [NLU] Improve entity extraction accuracy

- [ ]
- [X] uppercase is not a marker
`

func TestStatusMarkerBijection(t *testing.T) {
	for _, s := range Statuses {
		got, ok := ParseMarker(s.Marker())
		require.True(t, ok, s.String())
		assert.Equal(t, s, got)
	}
	_, ok := ParseMarker("[X]")
	assert.False(t, ok)
	assert.Equal(t, "", Status(9).Marker())
	assert.False(t, Status(-1).Valid())
}

func TestParse_RecognisesTaskLinesOnly(t *testing.T) {
	doc := Parse([]byte(sample))

	want := []Task{
		{Text: "[Cognition] Add decay factor to emotional states", Status: Pending, Category: "Cognition", Line: 5},
		{Text: "[Frontend] Add dark mode toggle to UI", Status: InProgress, Category: "Frontend", Line: 6},
		{Text: "[NLU] Improve entity extraction accuracy", Status: Done, Category: "NLU", Line: 7},
	}
	if diff := cmp.Diff(want, doc.Tasks()); diff != "" {
		t.Errorf("Tasks() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Counts{Pending: 1, InProgress: 1, Done: 1}, doc.Counts())
	assert.Equal(t, 3, doc.Counts().Total())
}

func TestParse_RoundTripsBytes(t *testing.T) {
	inputs := []string{
		sample,
		"",
		"no newline at end",
		"- [ ] a\r\n- [/] b\r\n",
		"\n\n\n",
	}
	for _, in := range inputs {
		assert.Equal(t, in, string(Parse([]byte(in)).Bytes()))
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "Cognition", CategoryOf("[Cognition] thing"))
	assert.Equal(t, "", CategoryOf("plain task"))
	assert.Equal(t, "", CategoryOf("[ ] odd"))
}

func TestDocument_TransitionAllPairs(t *testing.T) {
	for _, from := range Statuses {
		for _, to := range Statuses {
			if from == to {
				continue
			}
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				doc := Parse([]byte("header\n- " + from.Marker() + " task one\n"))
				require.True(t, doc.Transition("task one", from, to))

				_, stillFrom := doc.FindFirst(from)
				assert.False(t, stillFrom)
				task, ok := doc.FindFirst(to)
				require.True(t, ok)
				assert.Equal(t, "task one", task.Text)
				assert.Equal(t, "header\n- "+to.Marker()+" task one\n", string(doc.Bytes()))
			})
		}
	}
}

func TestDocument_TransitionPreservesLayout(t *testing.T) {
	in := "  - [ ] indented   \r\n- [ ] other\r\n"
	doc := Parse([]byte(in))
	require.True(t, doc.Transition("indented", Pending, InProgress))
	assert.Equal(t, "  - [/] indented   \r\n- [ ] other\r\n", string(doc.Bytes()))
}

func TestDocument_DuplicateTextOnlyFirstTransitions(t *testing.T) {
	in := "- [ ] dup\n- [ ] dup\n"
	doc := Parse([]byte(in))

	require.True(t, doc.Transition("dup", Pending, InProgress))
	assert.Equal(t, "- [/] dup\n- [ ] dup\n", string(doc.Bytes()))

	task, ok := doc.FindFirst(Pending)
	require.True(t, ok)
	assert.Equal(t, 1, task.Line)
}

func TestDocument_TransitionNoMatch(t *testing.T) {
	doc := Parse([]byte(sample))
	assert.False(t, doc.Transition("missing", Pending, Done))
	assert.False(t, doc.Transition("[Frontend] Add dark mode toggle to UI", Pending, Done))
	assert.False(t, doc.Transition("[Cognition] Add decay factor to emotional states", Pending, Status(7)))
	assert.Equal(t, sample, string(doc.Bytes()))
}

func newLedger(t *testing.T, content string) (*FileLedger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backlog.md")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	}
	return NewFileLedger(path, zap.NewNop()), path
}

func TestFileLedger_TransitionIsIdempotent(t *testing.T) {
	l, path := newLedger(t, sample)
	text := "[Cognition] Add decay factor to emotional states"

	ok, err := l.Transition(text, Pending, InProgress)
	require.NoError(t, err)
	require.True(t, ok)
	once, err := os.ReadFile(path)
	require.NoError(t, err)

	ok, err = l.Transition(text, Pending, InProgress)
	require.NoError(t, err)
	assert.False(t, ok)
	twice, err := os.ReadFile(path)
	require.NoError(t, err)

	if diff := cmp.Diff(string(once), string(twice)); diff != "" {
		t.Errorf("second transition changed the ledger:\n%s", diff)
	}
	assert.Equal(t, strings.Replace(sample, "- [ ] [Cognition]", "- [/] [Cognition]", 1), string(once))
}

func TestFileLedger_PreservesPermissions(t *testing.T) {
	l, path := newLedger(t, "- [ ] a\n")

	ok, err := l.Transition("a", Pending, Done)
	require.NoError(t, err)
	require.True(t, ok)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestFileLedger_MissingFileReadsEmpty(t *testing.T) {
	l, path := newLedger(t, "")

	_, ok := l.FindFirstByStatus(Pending)
	assert.False(t, ok)

	tasks, err := l.Tasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)

	ok, err = l.Transition("a", Pending, InProgress)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, path)
}

func TestFileLedger_UnreadableReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLedger(dir, zap.NewNop()) // a directory can't be read as a file

	_, ok := l.FindFirstByStatus(Pending)
	assert.False(t, ok)

	_, err := l.Transition("a", Pending, InProgress)
	assert.Error(t, err)
}

func TestFileLedger_AllDoneLeavesBytesAlone(t *testing.T) {
	content := "# Done\n- [x] a\n- [x] b\n"
	l, path := newLedger(t, content)

	_, ok := l.FindFirstByStatus(Pending)
	assert.False(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(rand.New(rand.NewPCG(1, 2)), 1, 20)
	b := Generate(rand.New(rand.NewPCG(1, 2)), 1, 20)
	assert.Equal(t, a, b)
	require.Len(t, a, 20)

	doc := Parse([]byte(strings.Join(a, "\n")))
	tasks := doc.Tasks()
	require.Len(t, tasks, 20)
	for i, task := range tasks {
		assert.Equal(t, Pending, task.Status)
		assert.Contains(t, Catalogue, task.Category)
		assert.True(t, strings.HasSuffix(task.Text, "#"+strconv.Itoa(i+1)), task.Text)
	}
}

func TestFileLedger_AppendGenerated(t *testing.T) {
	l, path := newLedger(t, "# Backlog\n- [x] existing")

	lines, err := l.AppendGenerated(rand.New(rand.NewPCG(7, 7)), 3)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "#2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Backlog\n- [x] existing\n\n"+SeedHeading+"\n"))

	tasks, err := l.Tasks()
	require.NoError(t, err)
	assert.Len(t, tasks, 4)
}

func TestMarkDone(t *testing.T) {
	in := "- [ ] [Frontend] Add dark mode toggle to UI (Phase 1) #1\n" +
		"- [/] [Frontend] Add dark mode toggle to UI (Phase 2) #2\n" +
		"- [ ] [Infrastructure] Optimize C++ compile times with precompiled headers - Testing #3\n" +
		"- [ ] [NLU] Improve entity extraction accuracy #4\n"

	out, n, err := MarkDone([]byte(in), []string{`add DARK mode`, `Optimize C\+\+ compile`})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want := "- [x] [Frontend] Add dark mode toggle to UI (Phase 1) #1\n" +
		"- [/] [Frontend] Add dark mode toggle to UI (Phase 2) #2\n" +
		"- [x] [Infrastructure] Optimize C++ compile times with precompiled headers - Testing #3\n" +
		"- [ ] [NLU] Improve entity extraction accuracy #4\n"
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Errorf("MarkDone mismatch (-want +got):\n%s", diff)
	}

	_, _, err = MarkDone([]byte(in), []string{"("})
	assert.Error(t, err)
}

func TestFileLedger_MarkDoneNoChangeKeepsFile(t *testing.T) {
	l, path := newLedger(t, "- [ ] a\n")
	before, err := os.Stat(path)
	require.NoError(t, err)

	n, err := l.MarkDone([]string{"zzz"})
	require.NoError(t, err)
	assert.Zero(t, n)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestFileLedger_ChangedExternally(t *testing.T) {
	l, path := newLedger(t, "- [ ] a\n")
	assert.True(t, l.ChangedExternally(), "nothing written yet")

	ok, err := l.Transition("a", Pending, InProgress)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, l.ChangedExternally())

	require.NoError(t, os.WriteFile(path, []byte("- [/] a\n- [ ] b\n"), 0644))
	assert.True(t, l.ChangedExternally())
}
