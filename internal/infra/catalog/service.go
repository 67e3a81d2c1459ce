package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// Service pairs the merger with the store. A refresh that completes replaces
// the published snapshot; a failed one leaves the last-known-good catalog
// visible to readers.
type Service struct {
	merger *Merger
	store  *Store
}

// NewService creates a catalog service over the given merger and store.
func NewService(merger *Merger, store *Store) *Service {
	return &Service{merger: merger, store: store}
}

// Refresh rebuilds the catalog from all hosts and publishes the result.
func (s *Service) Refresh(ctx context.Context) (domain.Snapshot, error) {
	snap, err := s.merger.Refresh(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.store.Replace(snap)
	return snap, nil
}

// Current returns the latest published snapshot.
func (s *Service) Current() domain.Snapshot {
	return s.store.Current()
}

// LastRefresh reports when the current snapshot was produced, and false if no
// refresh has completed yet.
func (s *Service) LastRefresh() (time.Time, bool) {
	return s.store.LastRefresh()
}

// Lookup finds a descriptor by stable id.
func (s *Service) Lookup(id string) (domain.ModelDescriptor, bool) {
	return s.store.Lookup(id)
}

// Find resolves a user-supplied reference against the current snapshot: a
// stable id first, then an exact name, then a unique name substring. Ambiguous
// substrings resolve to nothing.
func (s *Service) Find(ref string) (domain.ModelDescriptor, bool) {
	snap := s.store.Current()
	if d, ok := snap.Lookup(ref); ok {
		return d, true
	}

	lowered := strings.ToLower(ref)
	var partial domain.ModelDescriptor
	partials := 0
	for _, d := range snap.Models {
		name := strings.ToLower(d.Name)
		if name == lowered {
			return d, true
		}
		if strings.Contains(name, lowered) {
			partial = d
			partials++
		}
	}
	if partials == 1 {
		return partial, true
	}
	return domain.ModelDescriptor{}, false
}
