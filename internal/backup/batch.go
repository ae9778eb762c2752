package backup

import (
	"path/filepath"

	"github.com/jvs-project/warden/pkg/model"
)

// Batch coalesces snapshot requests made while handling one hook event:
// repeated requests for the same path return the first snapshot.
type Batch struct {
	m     *Manager
	taken map[string]*model.BackupSnapshot
}

// NewBatch starts a coalescing scope.
func (m *Manager) NewBatch() *Batch {
	return &Batch{m: m, taken: make(map[string]*model.BackupSnapshot)}
}

// Snapshot takes a snapshot of path unless one was already taken in this batch.
func (b *Batch) Snapshot(path string) (*model.BackupSnapshot, bool, error) {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	if snap, ok := b.taken[key]; ok {
		return snap, false, nil
	}
	snap, err := b.m.Snapshot(path)
	if err != nil {
		return nil, false, err
	}
	b.taken[key] = snap
	return snap, true, nil
}

// Len returns how many distinct snapshots the batch took.
func (b *Batch) Len() int { return len(b.taken) }
