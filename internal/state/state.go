package state

import (
	"sync"
	"time"
)

// Snapshot is a loaded table together with where it came from.
type Snapshot struct {
	Table    *Table
	Source   string
	LoadedAt time.Time
}

// Store holds the active dataset snapshot. The table inside is never
// mutated; Replace swaps the whole snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewStore creates a store, optionally seeded with a snapshot.
func NewStore(initial *Snapshot) *Store {
	return &Store{snapshot: initial}
}

// Replace installs a new snapshot and returns the previous one.
func (s *Store) Replace(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot
	s.snapshot = snap
	return prev
}

// Current returns the active snapshot, or nil when nothing is loaded.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

// Table returns the active table, or nil when nothing is loaded.
func (s *Store) Table() *Table {
	snap := s.Current()
	if snap == nil {
		return nil
	}
	return snap.Table
}
