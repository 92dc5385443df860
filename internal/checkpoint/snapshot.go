package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"
)

type fileState struct {
	data   []byte
	mode   fs.FileMode
	exists bool
}

type snapshot struct {
	label string
	files map[string]fileState
}

// SnapshotStore keeps checkpoints of a fixed file set in memory. A baseline
// is taken at construction; RevertLast pops one snapshot and restores the
// files to the one beneath it. The baseline itself can't be reverted.
type SnapshotStore struct {
	mu    sync.Mutex
	paths []string
	stack []snapshot
	log   *zap.Logger
}

// NewSnapshotStore captures the baseline for paths.
func NewSnapshotStore(log *zap.Logger, paths ...string) (*SnapshotStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SnapshotStore{paths: append([]string(nil), paths...), log: log}
	base, err := s.capture("baseline")
	if err != nil {
		return nil, err
	}
	s.stack = append(s.stack, base)
	return s, nil
}

// Commit pushes the current state of the tracked files.
func (s *SnapshotStore) Commit(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.capture(message)
	if err != nil {
		return err
	}
	s.stack = append(s.stack, snap)
	s.log.Info("checkpoint committed", zap.String("message", message), zap.Int("depth", len(s.stack)-1))
	return nil
}

// RevertLast drops the latest checkpoint and restores the previous one.
func (s *SnapshotStore) RevertLast(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stack) < 2 {
		return ErrNothingToRevert
	}
	dropped := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if err := s.restore(s.stack[len(s.stack)-1]); err != nil {
		return err
	}
	s.log.Info("checkpoint reverted", zap.String("message", dropped.label))
	return nil
}

// History returns checkpoint labels oldest first, excluding the baseline.
func (s *SnapshotStore) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	labels := make([]string, 0, len(s.stack)-1)
	for _, snap := range s.stack[1:] {
		labels = append(labels, snap.label)
	}
	return labels
}

func (s *SnapshotStore) capture(label string) (snapshot, error) {
	snap := snapshot{label: label, files: make(map[string]fileState, len(s.paths))}
	for _, p := range s.paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			snap.files[p] = fileState{}
			continue
		}
		if err != nil {
			return snapshot{}, fmt.Errorf("snapshot %s: %w", p, err)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return snapshot{}, fmt.Errorf("snapshot %s: %w", p, err)
		}
		snap.files[p] = fileState{data: data, mode: info.Mode().Perm(), exists: true}
	}
	return snap, nil
}

func (s *SnapshotStore) restore(snap snapshot) error {
	for _, p := range s.paths {
		st := snap.files[p]
		if !st.exists {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("restore %s: %w", p, err)
			}
			continue
		}
		if err := os.WriteFile(p, st.data, st.mode); err != nil {
			return fmt.Errorf("restore %s: %w", p, err)
		}
	}
	return nil
}
