// Package transfer implements the resumable download engine: a FIFO
// scheduler with a fixed concurrency cap, per-transfer state machines with
// HTTP range resume, and SHA-256 integrity verification.
//
// A transfer's lifecycle: queued, connecting, inProgress, then paused,
// verifying, completed or failed; paused and failed transfers re-enter at
// connecting; cancelled is terminal. Non-terminal state persists through the
// transfer store so downloads survive daemon restarts.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/metrics"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the download scheduler.
type Config struct {
	Dir              string        // destination directory for artifacts
	MaxConcurrent    int           // cap on tasks holding download slots (default 3)
	MaxRetries       int           // attempts per admission before failing (default 5)
	BaseDelay        time.Duration // initial retry backoff, doubles per attempt (default 1s)
	MaxDelay         time.Duration // backoff cap (default 60s)
	ProgressInterval time.Duration // progress persist/event coalescing (default 250ms)
	Client           *http.Client  // overridable for tests
}

// DefaultConfig returns production download defaults rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		MaxConcurrent:    3,
		MaxRetries:       5,
		BaseDelay:        time.Second,
		MaxDelay:         60 * time.Second,
		ProgressInterval: 250 * time.Millisecond,
	}
}

// ─── Scheduler ──────────────────────────────────────────────────────────────

// Scheduler owns the live transfer set. All mutation goes through its entry
// points; at most MaxConcurrent tasks hold download slots at a time, admitted
// in first-enqueued-first-admitted order.
type Scheduler struct {
	cfg      Config
	client   *http.Client
	store    domain.TransferStore
	verifier *Verifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tasks   map[string]*task // by transfer id
	byDest  map[string]*task // by destination path
	pending []string         // FIFO of transfer ids awaiting a slot
	active  int
	closing bool

	subs    map[int]chan domain.TransferEvent
	nextSub int

	onComplete func(domain.TransferState)
}

// NewScheduler creates a Scheduler and reloads persisted transfers. Rows
// that were live when the previous process exited rematerialize as paused
// tasks holding their byte offsets, so the user resumes rather than restarts.
func NewScheduler(cfg Config, store domain.TransferStore, verifier *Verifier) (*Scheduler, error) {
	def := DefaultConfig(cfg.Dir)
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = def.ProgressInterval
	}
	client := cfg.Client
	if client == nil {
		// No overall timeout: artifact downloads run for hours. Cancellation
		// comes from the per-attempt context instead.
		client = &http.Client{}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create downloads dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:      cfg,
		client:   client,
		store:    store,
		verifier: verifier,
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[string]*task),
		byDest:   make(map[string]*task),
		subs:     make(map[int]chan domain.TransferEvent),
	}
	if err := s.reload(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// SetOnComplete registers a hook invoked after a transfer verifies and
// completes, outside the scheduler lock. The daemon wires library install
// here. Set during wiring, before the first Enqueue.
func (s *Scheduler) SetOnComplete(fn func(domain.TransferState)) { s.onComplete = fn }

func (s *Scheduler) reload() error {
	rows, err := s.store.ListTransfers()
	if err != nil {
		return fmt.Errorf("load persisted transfers: %w", err)
	}
	for _, st := range rows {
		if st.Status.IsActive() || st.Status == domain.TransferQueued {
			st.Status = domain.TransferPaused
			s.persist(st)
		}
		t := &task{state: st}
		s.tasks[st.ID] = t
		s.byDest[st.DestPath] = t
	}
	if len(rows) > 0 {
		log.Printf("[scheduler] reloaded %d persisted transfer(s)", len(rows))
	}
	return nil
}

// Close pauses all running transfers and waits for their goroutines. Paused
// state is persisted, so the next process start resumes where this one
// stopped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// ─── Enqueue & Admission ────────────────────────────────────────────────────

// Enqueue admits a descriptor into the download queue and returns the
// transfer handle. Enqueueing a descriptor that already has a non-terminal
// transfer is idempotent: the existing handle comes back and no second task
// starts. A terminal leftover for the same destination is replaced.
func (s *Scheduler) Enqueue(d domain.ModelDescriptor) (domain.TransferState, error) {
	if d.SourceURL == "" {
		return domain.TransferState{}, fmt.Errorf("%s: no downloadable artifact: %w", d.ID, domain.ErrArtifactNotFound)
	}
	dest := filepath.Join(s.cfg.Dir, destFileName(d))

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return domain.TransferState{}, errors.New("scheduler is shut down")
	}
	if prev := s.byDest[dest]; prev != nil {
		st := prev.snapshot()
		if st.DescriptorID != d.ID {
			s.mu.Unlock()
			return domain.TransferState{}, fmt.Errorf("%s: %w", dest, domain.ErrDestinationInUse)
		}
		if !st.Status.IsTerminal() {
			s.mu.Unlock()
			return st, nil
		}
		delete(s.tasks, st.ID)
		delete(s.byDest, dest)
	}

	now := time.Now()
	st := domain.TransferState{
		ID:             uuid.NewString(),
		DescriptorID:   d.ID,
		Name:           d.Name,
		SourceURL:      d.SourceURL,
		DestPath:       dest,
		TotalBytes:     d.SizeBytes,
		ExpectedDigest: d.Digest,
		Status:         domain.TransferQueued,
		EnqueuedAt:     now,
		UpdatedAt:      now,
	}
	t := &task{state: st}
	s.tasks[st.ID] = t
	s.byDest[dest] = t
	s.pending = append(s.pending, st.ID)
	s.broadcastLocked(domain.TransferEvent{State: st, At: now})
	s.admitLocked()
	s.mu.Unlock()

	s.persist(st)
	log.Printf("[scheduler] enqueued %s as %s", d.ID, st.ID)
	return st, nil
}

// admitLocked starts waiting tasks while download slots are free.
// Callers hold s.mu.
func (s *Scheduler) admitLocked() {
	for !s.closing && s.active < s.cfg.MaxConcurrent && len(s.pending) > 0 {
		id := s.pending[0]
		s.pending = s.pending[1:]
		t := s.tasks[id]
		if t == nil {
			continue
		}
		if st := t.snapshot(); st.Status.IsTerminal() || st.Status.IsActive() {
			continue
		}
		s.active++
		metrics.TransfersActive.Inc()
		ctx, stop := context.WithCancel(s.ctx)
		t.mu.Lock()
		t.stop = stop
		t.pauseWanted = false
		t.cancelWanted = false
		t.mu.Unlock()
		s.wg.Add(1)
		go s.run(ctx, t)
	}
}

// run drives one admission of a task and releases its slot afterwards.
func (s *Scheduler) run(ctx context.Context, t *task) {
	defer s.wg.Done()
	disp := s.download(ctx, t)

	t.mu.Lock()
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.mu.Unlock()

	s.mu.Lock()
	s.active--
	metrics.TransfersActive.Dec()
	s.admitLocked()
	s.mu.Unlock()

	if disp == dispCompleted && s.onComplete != nil {
		s.onComplete(t.snapshot())
	}
}

// ─── Controls ───────────────────────────────────────────────────────────────

// Pause stops a transfer, keeping its bytes on disk and its resume row.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	t := s.tasks[id]
	if t == nil {
		s.mu.Unlock()
		return domain.ErrTransferNotFound
	}
	st := t.snapshot()
	t.mu.Lock()
	running := t.stop != nil
	t.mu.Unlock()

	switch {
	case st.Status == domain.TransferQueued && !running:
		s.dropPendingLocked(id)
		s.mu.Unlock()
		s.update(t, func(st *domain.TransferState) {
			st.Status = domain.TransferPaused
		})
		return nil
	case st.Status == domain.TransferQueued || st.Status == domain.TransferConnecting || st.Status == domain.TransferInProgress:
		// A queued task with an attempt context was admitted a moment ago;
		// the runner owns it now, so signal it like a running one.
		t.mu.Lock()
		t.pauseWanted = true
		stop := t.stop
		t.mu.Unlock()
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		return nil
	default:
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
}

// Resume re-admits a paused transfer. With every slot busy it waits its turn
// in FIFO order and moves to connecting at admission.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if t == nil {
		return domain.ErrTransferNotFound
	}
	if st := t.snapshot(); st.Status != domain.TransferPaused {
		return domain.ErrInvalidTransition
	}
	if s.isPendingLocked(id) {
		return nil
	}
	s.pending = append(s.pending, id)
	s.admitLocked()
	return nil
}

// Retry re-admits a failed transfer. After a transient network failure, the
// retry resumes from the last acknowledged offset; after digestMismatch or
// serverRejectedRange it restarts from byte zero with the partial discarded.
func (s *Scheduler) Retry(id string) error {
	s.mu.Lock()
	t := s.tasks[id]
	if t == nil {
		s.mu.Unlock()
		return domain.ErrTransferNotFound
	}
	if st := t.snapshot(); st.Status != domain.TransferFailed {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if s.isPendingLocked(id) {
		s.mu.Unlock()
		return nil
	}
	t.mu.Lock()
	kind := t.failKind
	t.mu.Unlock()
	s.mu.Unlock()

	switch kind {
	case domain.TransferDigestMismatch, domain.TransferServerRejectedRange:
		s.resetProgress(t)
	}

	s.mu.Lock()
	s.pending = append(s.pending, id)
	s.admitLocked()
	s.mu.Unlock()
	return nil
}

// Cancel aborts a transfer, removing partial data and its resume row. The
// slot frees as soon as the connection closes.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	t := s.tasks[id]
	if t == nil {
		s.mu.Unlock()
		return domain.ErrTransferNotFound
	}
	st := t.snapshot()
	if st.Status.IsTerminal() {
		s.mu.Unlock()
		return domain.ErrTransferTerminal
	}
	t.mu.Lock()
	running := t.stop != nil
	t.mu.Unlock()

	if st.Status.IsActive() || running {
		t.mu.Lock()
		t.cancelWanted = true
		stop := t.stop
		t.mu.Unlock()
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		return nil
	}

	// Queued, paused, or failed: nothing is running, finish the cancel here.
	s.dropPendingLocked(id)
	s.mu.Unlock()
	s.discard(t)
	s.update(t, func(st *domain.TransferState) {
		st.Status = domain.TransferCancelled
		st.BytesReceived = 0
		st.ResumeToken = ""
	})
	metrics.TransfersCompleted.WithLabelValues("cancelled").Inc()
	log.Printf("[scheduler] transfer %s cancelled", id)
	return nil
}

// Dismiss drops a completed, failed, or cancelled transfer from the set.
// Dismissing a failed transfer abandons it: its partial file and resume row
// are removed. A completed transfer keeps its artifact, only the history
// entry goes away.
func (s *Scheduler) Dismiss(id string) error {
	s.mu.Lock()
	t := s.tasks[id]
	if t == nil {
		s.mu.Unlock()
		return domain.ErrTransferNotFound
	}
	st := t.snapshot()
	switch st.Status {
	case domain.TransferCompleted, domain.TransferFailed, domain.TransferCancelled:
	default:
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	delete(s.tasks, id)
	delete(s.byDest, st.DestPath)
	s.mu.Unlock()

	if st.Status == domain.TransferFailed {
		_ = os.Remove(st.DestPath)
	}
	if err := s.store.DeleteTransfer(st.DestPath); err != nil {
		log.Printf("[scheduler] delete transfer row %s: %v", st.DestPath, err)
	}
	return nil
}

// ─── Inspection ─────────────────────────────────────────────────────────────

// Get returns the current state of one transfer.
func (s *Scheduler) Get(id string) (domain.TransferState, error) {
	s.mu.Lock()
	t := s.tasks[id]
	s.mu.Unlock()
	if t == nil {
		return domain.TransferState{}, domain.ErrTransferNotFound
	}
	return t.snapshot(), nil
}

// States returns a snapshot of every live transfer, oldest first.
func (s *Scheduler) States() []domain.TransferState {
	s.mu.Lock()
	list := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		list = append(list, t)
	}
	s.mu.Unlock()

	out := make([]domain.TransferState, 0, len(list))
	for _, t := range list {
		out = append(out, t.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out
}

// QueueDepth returns the number of tasks holding slots and waiting for one.
func (s *Scheduler) QueueDepth() (active, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, len(s.pending)
}

// ─── Events ─────────────────────────────────────────────────────────────────

// Subscribe registers an observer of transfer events. The returned cancel
// func must be called to release the channel. A slow subscriber misses
// intermediate progress events rather than stalling transfers.
func (s *Scheduler) Subscribe() (<-chan domain.TransferEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.TransferEvent, 64)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Scheduler) broadcast(ev domain.TransferEvent) {
	s.mu.Lock()
	s.broadcastLocked(ev)
	s.mu.Unlock()
}

func (s *Scheduler) broadcastLocked(ev domain.TransferEvent) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ─── Internal ───────────────────────────────────────────────────────────────

// update applies a state mutation, persists the row, and broadcasts the
// resulting event. All updates to one task come from a single goroutine at a
// time, so persisted rows never go backwards.
func (s *Scheduler) update(t *task, mutate func(*domain.TransferState)) {
	t.mu.Lock()
	mutate(&t.state)
	t.state.UpdatedAt = time.Now()
	st := t.state
	t.mu.Unlock()

	s.persist(st)
	s.broadcast(domain.TransferEvent{State: st, At: st.UpdatedAt})
}

func (s *Scheduler) persist(st domain.TransferState) {
	if st.Status == domain.TransferCancelled {
		return // cancel already removed the resume row
	}
	if err := s.store.SaveTransfer(st); err != nil {
		log.Printf("[scheduler] persist transfer %s: %v", st.ID, err)
	}
}

// discard removes the partial file and the resume row.
func (s *Scheduler) discard(t *task) {
	st := t.snapshot()
	if st.DestPath != "" {
		_ = os.Remove(st.DestPath)
	}
	if err := s.store.DeleteTransfer(st.DestPath); err != nil {
		log.Printf("[scheduler] delete resume row %s: %v", st.DestPath, err)
	}
}

func (s *Scheduler) dropPendingLocked(id string) {
	for i, p := range s.pending {
		if p == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) isPendingLocked(id string) bool {
	for _, p := range s.pending {
		if p == id {
			return true
		}
	}
	return false
}
