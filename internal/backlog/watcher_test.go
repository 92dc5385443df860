package backlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcher_SignalsOnLedgerWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.md")
	require.NoError(t, os.WriteFile(path, []byte("- [ ] a\n"), 0644))

	w, err := NewWatcher(path, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	ledger := NewFileLedger(path, zap.NewNop())
	ok, err := ledger.Transition("a", Pending, InProgress)
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.md")

	w, err := NewWatcher(path, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "brain.cpp"), []byte("x"), 0644))

	select {
	case <-w.Changes():
		t.Fatal("unexpected signal for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
	assert.NoError(t, w.Close())
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "backlog.md"), 0, nil)
	assert.Error(t, err)
}
