package snapshot

import (
	"sync"

	"foldkit/internal/diag"
	"foldkit/internal/editor"
	"foldkit/internal/source"
)

// Store keeps the latest snapshot per document path. Readers get the stored
// value itself; writers always install a new one, so a snapshot handed out
// never changes under its reader.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

func NewStore() *Store {
	return &Store{snaps: make(map[string]*Snapshot)}
}

func (s *Store) Get(path string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[path]
	return snap, ok
}

// Put installs a copy of snap for its path.
func (s *Store) Put(snap *Snapshot) {
	if snap == nil {
		return
	}
	cp := &Snapshot{Path: snap.Path, Entries: append([]Entry(nil), snap.Entries...)}
	s.mu.Lock()
	s.snaps[cp.Path] = cp
	s.mu.Unlock()
}

func (s *Store) Delete(path string) {
	s.mu.Lock()
	delete(s.snaps, path)
	s.mu.Unlock()
}

// Capture snapshots doc from views and stores the result.
func (s *Store) Capture(doc *source.Document, views []*editor.View, rep diag.Reporter) *Snapshot {
	snap := Capture(doc, views, rep)
	s.mu.Lock()
	s.snaps[snap.Path] = snap
	s.mu.Unlock()
	return snap
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}
