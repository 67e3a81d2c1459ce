package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

type fakeCatalog struct {
	at time.Time
	ok bool
}

func (f fakeCatalog) LastRefresh() (time.Time, bool) { return f.at, f.ok }

type fakeQueue struct {
	active int
	queued int
}

func (f *fakeQueue) QueueDepth() (int, int) { return f.active, f.queued }

func newTestChecker(t *testing.T) *Checker {
	t.Helper()
	return NewChecker(fakePinger{}, t.TempDir(),
		fakeCatalog{at: time.Now(), ok: true}, &fakeQueue{})
}

func statusByName(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found in statuses", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := newTestChecker(t)
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 4 {
		t.Errorf("checks = %d, want 4", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := newTestChecker(t)
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 4 {
		t.Fatalf("Statuses() = %d, want 4", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := newTestChecker(t)

	// Before any run there are no statuses; IsHealthy is vacuously true.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run")
	}
}

func TestChecker_StateDBFailure(t *testing.T) {
	c := NewChecker(fakePinger{err: errors.New("database is locked")}, t.TempDir(),
		fakeCatalog{ok: false}, &fakeQueue{})
	c.runAll(context.Background())

	s := statusByName(t, c, "state_db")
	if s.Healthy {
		t.Error("state_db should fail when the ping fails")
	}
	if s.Error == "" {
		t.Error("error message should be populated")
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false with a failing check")
	}
}

func TestChecker_DownloadsDirRecreatedWhenMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	c := NewChecker(fakePinger{}, dir, fakeCatalog{ok: false}, &fakeQueue{})
	c.runAll(context.Background())

	if s := statusByName(t, c, "downloads_dir"); !s.Healthy {
		t.Errorf("downloads_dir should recover by recreating the dir, got: %s", s.Error)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("downloads dir not recreated: %v", err)
	}
}

func TestChecker_DownloadsDirIsAFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	if err := os.WriteFile(dir, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	c := NewChecker(fakePinger{}, dir, fakeCatalog{ok: false}, &fakeQueue{})
	c.runAll(context.Background())

	if s := statusByName(t, c, "downloads_dir"); s.Healthy {
		t.Error("downloads_dir should fail when the path is a regular file")
	}
}

func TestChecker_CatalogFreshness(t *testing.T) {
	tests := []struct {
		name    string
		cat     fakeCatalog
		healthy bool
	}{
		{"never refreshed", fakeCatalog{ok: false}, true},
		{"fresh", fakeCatalog{at: time.Now().Add(-time.Hour), ok: true}, true},
		{"stale", fakeCatalog{at: time.Now().Add(-25 * time.Hour), ok: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(fakePinger{}, t.TempDir(), tt.cat, &fakeQueue{})
			c.runAll(context.Background())
			if s := statusByName(t, c, "catalog_freshness"); s.Healthy != tt.healthy {
				t.Errorf("healthy = %v, want %v (error: %s)", s.Healthy, tt.healthy, s.Error)
			}
		})
	}
}

func TestChecker_SchedulerStarvation(t *testing.T) {
	q := &fakeQueue{active: 0, queued: 2}
	c := NewChecker(fakePinger{}, t.TempDir(), fakeCatalog{ok: false}, q)
	c.starvedAfter = 0

	// First observation arms the detector but stays healthy.
	c.runAll(context.Background())
	if s := statusByName(t, c, "scheduler"); !s.Healthy {
		t.Errorf("one observation should not report starvation: %s", s.Error)
	}

	// Backlog still has no slot on the next pass: now it is a wedge.
	c.runAll(context.Background())
	if s := statusByName(t, c, "scheduler"); s.Healthy {
		t.Error("scheduler should report starvation after a persistent backlog")
	}

	// A taken slot clears the detector.
	q.active = 1
	c.runAll(context.Background())
	if s := statusByName(t, c, "scheduler"); !s.Healthy {
		t.Errorf("active slot should clear starvation: %s", s.Error)
	}
}

func TestChecker_BacklogWithActiveSlots(t *testing.T) {
	c := NewChecker(fakePinger{}, t.TempDir(), fakeCatalog{ok: false},
		&fakeQueue{active: 3, queued: 10})
	c.starvedAfter = 0
	c.runAll(context.Background())
	c.runAll(context.Background())

	if s := statusByName(t, c, "scheduler"); !s.Healthy {
		t.Errorf("a busy queue with active slots is not a wedge: %s", s.Error)
	}
}

func TestChecker_CustomCheck(t *testing.T) {
	c := &Checker{
		checks: []Check{
			{
				Name: "always_pass",
				CheckFn: func(ctx context.Context) error {
					return nil
				},
			},
		},
	}
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	if !statuses[0].Healthy {
		t.Error("always_pass check should be healthy")
	}
}

func TestChecker_FailingCheckRecovery(t *testing.T) {
	recovered := false
	c := &Checker{
		checks: []Check{
			{
				Name: "flaky",
				CheckFn: func(ctx context.Context) error {
					if recovered {
						return nil
					}
					return os.ErrPermission
				},
				RecoverFn: func(ctx context.Context) error {
					recovered = true
					return nil
				},
			},
		},
	}
	c.runAll(context.Background())

	if s := c.Statuses()[0]; !s.Healthy {
		t.Errorf("check should pass after successful recovery, got: %s", s.Error)
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	c := newTestChecker(t)
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()
	if len(s1) > 0 {
		s1[0].Healthy = false
		if !s2[0].Healthy {
			t.Error("Statuses() should return a copy, not a reference")
		}
	}
}
