package backlog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileLedger is the backlog file on disk. Reads and writes are serialised
// by an in-process lock; edits made by other processes between a read and
// the following write are lost.
type FileLedger struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger

	lastWritten []byte
}

// NewFileLedger returns a ledger for path. The file need not exist.
func NewFileLedger(path string, log *zap.Logger) *FileLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileLedger{path: path, log: log}
}

// Path returns the ledger file path.
func (l *FileLedger) Path() string {
	return l.path
}

// FindFirstByStatus returns the first task with status in file order. An
// unreadable or missing file reads as an empty ledger.
func (l *FileLedger) FindFirstByStatus(status Status) (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		l.log.Warn("backlog unavailable", zap.String("path", l.path), zap.Error(err))
		return Task{}, false
	}
	if doc == nil {
		return Task{}, false
	}
	return doc.FindFirst(status)
}

// Transition rewrites the marker of the first (from, text) line to to.
// It returns false without touching the file when no line matches.
func (l *FileLedger) Transition(text string, from, to Status) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return false, err
	}
	if doc == nil || !doc.Transition(text, from, to) {
		l.log.Debug("no matching task", zap.String("task", text), zap.Stringer("from", from))
		return false, nil
	}
	out := doc.Bytes()
	if err := writeAtomic(l.path, out); err != nil {
		return false, err
	}
	l.lastWritten = out
	l.log.Info("task transitioned",
		zap.String("task", text),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	return true, nil
}

// Tasks lists every task. A missing file yields an empty list.
func (l *FileLedger) Tasks() ([]Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Tasks(), nil
}

// Update applies fn to the raw file contents and writes the result back if
// it changed. A missing file is passed to fn as nil.
func (l *FileLedger) Update(fn func(data []byte) ([]byte, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read backlog: %w", err)
	}
	out, err := fn(data)
	if err != nil {
		return err
	}
	if bytes.Equal(out, data) {
		return nil
	}
	if err := writeAtomic(l.path, out); err != nil {
		return err
	}
	l.lastWritten = out
	return nil
}

// ChangedExternally reports whether the file differs from what this ledger
// last wrote. Before the first write any content counts as external.
func (l *FileLedger) ChangedExternally() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil || l.lastWritten == nil {
		return true
	}
	return !bytes.Equal(data, l.lastWritten)
}

// load returns nil, nil when the file doesn't exist.
func (l *FileLedger) load() (*Document, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backlog: %w", err)
	}
	return Parse(data), nil
}

// writeAtomic replaces path via a temp file in the same directory, keeping
// the existing permissions.
func writeAtomic(path string, data []byte) error {
	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create backlog directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write backlog: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set backlog permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace backlog: %w", err)
	}
	return nil
}
