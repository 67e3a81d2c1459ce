// Package health provides periodic health checks with auto-recovery.
// Checks cover the state database, the downloads directory, catalog
// freshness and scheduler liveness; results feed /health and the
// health_check_status metrics.
package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelbay/modelbay/internal/infra/metrics"
)

const (
	checkInterval = 60 * time.Second
	staleAfter    = 24 * time.Hour
	starvedAfter  = 3 * time.Minute
)

// Pinger is the state database liveness probe.
type Pinger interface {
	Ping() error
}

// CatalogInfo reports when the catalog was last refreshed.
type CatalogInfo interface {
	LastRefresh() (time.Time, bool)
}

// QueueInfo reports scheduler slot occupancy.
type QueueInfo interface {
	QueueDepth() (active, queued int)
}

// Check defines a single health check with an optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status is the result of one health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs the check set on a fixed interval.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status

	interval     time.Duration
	staleAfter   time.Duration
	starvedAfter time.Duration
}

// NewChecker creates a checker with the standard check set.
func NewChecker(db Pinger, downloadsDir string, cat CatalogInfo, queue QueueInfo) *Checker {
	c := &Checker{
		interval:     checkInterval,
		staleAfter:   staleAfter,
		starvedAfter: starvedAfter,
	}

	// One observation of an empty-slot backlog is fine (a transition was in
	// flight); a backlog that sits across checks means the scheduler wedged.
	var starvedSince time.Time

	c.checks = []Check{
		{
			Name: "state_db",
			CheckFn: func(ctx context.Context) error {
				return db.Ping()
			},
		},
		{
			Name: "downloads_dir",
			CheckFn: func(ctx context.Context) error {
				return checkWritable(downloadsDir)
			},
			RecoverFn: func(ctx context.Context) error {
				return os.MkdirAll(downloadsDir, 0o755)
			},
		},
		{
			Name: "catalog_freshness",
			CheckFn: func(ctx context.Context) error {
				at, ok := cat.LastRefresh()
				if !ok {
					return nil // no refresh yet; empty is not stale
				}
				if age := time.Since(at); age > c.staleAfter {
					return fmt.Errorf("catalog snapshot is %s old", age.Round(time.Minute))
				}
				return nil
			},
		},
		{
			Name: "scheduler",
			CheckFn: func(ctx context.Context) error {
				active, queued := queue.QueueDepth()
				if queued == 0 || active > 0 {
					starvedSince = time.Time{}
					return nil
				}
				if starvedSince.IsZero() {
					starvedSince = time.Now()
					return nil
				}
				if wait := time.Since(starvedSince); wait > c.starvedAfter {
					return fmt.Errorf("%d transfers queued with no slot taken for %s",
						queued, wait.Round(time.Second))
				}
				return nil
			},
		},
	}
	return c
}

// Run starts the check loop. Call in a goroutine; returns when ctx ends.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		err := check.CheckFn(ctx)
		if err != nil && check.RecoverFn != nil {
			if rerr := check.RecoverFn(ctx); rerr == nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				err = check.CheckFn(ctx)
			}
		}
		if err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy reports whether every check passed on the last run.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// checkWritable proves the directory accepts writes by creating and removing
// a probe file. A stat is not enough: a full or read-only mount stats fine.
func checkWritable(dir string) error {
	probe := filepath.Join(dir, ".modelbay-health")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("downloads dir not writable: %w", err)
	}
	return os.Remove(probe)
}
