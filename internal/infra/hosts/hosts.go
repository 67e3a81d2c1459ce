// Package hosts implements the per-source catalog adapters.
// Each adapter speaks one external registry's paginated listing protocol and
// emits uniform raw records. Adapters self-throttle to the source's request
// interval and report failures as typed *domain.FetchError values; the merger
// decides what to do with them.
package hosts

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
)

// DefaultRequestInterval is the minimum delay between requests to one source.
const DefaultRequestInterval = 150 * time.Millisecond

const httpTimeout = 30 * time.Second

// ─── Throttle ───────────────────────────────────────────────────────────────

// throttle enforces a minimum inter-request interval per source. Concurrent
// query drains against the same adapter reserve send slots in arrival order,
// so the source-wide rate contract holds even under merger fan-out.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newThrottle(interval time.Duration) *throttle {
	if interval <= 0 {
		interval = DefaultRequestInterval
	}
	return &throttle{interval: interval}
}

// wait blocks until this caller's reserved send slot arrives or ctx ends.
func (t *throttle) wait(ctx context.Context) error {
	t.mu.Lock()
	now := time.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	d := time.Until(slot)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ─── Error Classification ───────────────────────────────────────────────────

// fetchStatusError maps a non-2xx listing response to a typed fetch error.
func fetchStatusError(source domain.Source, status int) *domain.FetchError {
	kind := domain.FetchServerError
	switch {
	case status == http.StatusTooManyRequests:
		kind = domain.FetchRateLimited
	case status == http.StatusNotFound:
		kind = domain.FetchNotFound
	}
	return &domain.FetchError{Source: source, Kind: kind, Status: status}
}

// fetchTransportError wraps a transport-level failure. Context cancellation
// passes through untouched so an aborted refresh is not misreported as a
// source outage.
func fetchTransportError(source domain.Source, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.FetchError{Source: source, Kind: domain.FetchNetworkUnreachable, Err: err}
}

// fetchDecodeError wraps a response-shape failure.
func fetchDecodeError(source domain.Source, err error) error {
	return &domain.FetchError{Source: source, Kind: domain.FetchMalformedResponse, Err: err}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}
