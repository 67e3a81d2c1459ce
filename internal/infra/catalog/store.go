package catalog

import (
	"sync"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// Store is the process-wide cache of the merged catalog. Readers poll
// Current for the latest immutable snapshot; a completed refresh swaps the
// snapshot in atomically. A failed refresh never touches the stored data,
// so the last-known-good catalog stays visible.
type Store struct {
	mu      sync.RWMutex
	snap    domain.Snapshot
	hasData bool
}

// NewStore creates an empty catalog store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the latest snapshot without blocking on writers for longer
// than the pointer swap. The returned snapshot is immutable; callers may
// share it freely.
func (s *Store) Current() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Replace atomically swaps in a new snapshot. Concurrent refreshes serialize
// here; the last one to finish wins, regardless of start order.
func (s *Store) Replace(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.hasData = true
}

// LastRefresh reports when the current snapshot was produced, and false if
// no refresh has completed yet.
func (s *Store) LastRefresh() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.RefreshedAt, s.hasData
}

// Lookup finds a descriptor by stable id in the current snapshot.
func (s *Store) Lookup(id string) (domain.ModelDescriptor, bool) {
	return s.Current().Lookup(id)
}
