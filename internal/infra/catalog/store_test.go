package catalog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

func snapshotOf(n int) domain.Snapshot {
	models := make([]domain.ModelDescriptor, n)
	for i := range models {
		models[i] = domain.ModelDescriptor{
			ID:   fmt.Sprintf("hub:o/m%d", i),
			Name: fmt.Sprintf("o/m%d", i),
		}
	}
	return domain.Snapshot{Models: models, RefreshedAt: time.Now()}
}

func TestStore_EmptyBeforeFirstRefresh(t *testing.T) {
	s := NewStore()
	if got := s.Current(); got.Len() != 0 {
		t.Errorf("empty store returned %d models", got.Len())
	}
	if _, ok := s.LastRefresh(); ok {
		t.Error("LastRefresh = true before any Replace")
	}
}

func TestStore_ReplaceAndRead(t *testing.T) {
	s := NewStore()
	s.Replace(snapshotOf(3))

	if got := s.Current(); got.Len() != 3 {
		t.Errorf("Current has %d models, want 3", got.Len())
	}
	if _, ok := s.LastRefresh(); !ok {
		t.Error("LastRefresh = false after Replace")
	}
	if _, ok := s.Lookup("hub:o/m1"); !ok {
		t.Error("Lookup missed a stored descriptor")
	}
}

func TestStore_LastWriterWins(t *testing.T) {
	s := NewStore()
	s.Replace(snapshotOf(5))
	s.Replace(snapshotOf(2))
	if got := s.Current(); got.Len() != 2 {
		t.Errorf("Current has %d models, want the later snapshot's 2", got.Len())
	}
}

// Readers must always observe a complete snapshot, never a torn one.
func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := NewStore()
	s.Replace(snapshotOf(4))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Current()
				// Valid sizes are exactly the ones ever published.
				if n := snap.Len(); n != 4 && n != 9 {
					t.Errorf("torn snapshot with %d models", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			s.Replace(snapshotOf(9))
		} else {
			s.Replace(snapshotOf(4))
		}
	}
	close(stop)
	wg.Wait()
}
