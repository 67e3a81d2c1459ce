package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/metrics"
)

const userAgent = "ModelBay/0.1.0"

// task is one transfer plus its control surface. The running goroutine owns
// all state writes; scheduler entry points only set the wanted flags and
// cancel the attempt context.
type task struct {
	mu    sync.Mutex
	state domain.TransferState

	stop         context.CancelFunc // cancels the running attempt, nil at rest
	pauseWanted  bool
	cancelWanted bool
	failKind     domain.TransferErrKind
}

func (t *task) snapshot() domain.TransferState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// disposition is how one admission of a task ended.
type disposition int

const (
	dispCompleted disposition = iota
	dispPaused
	dispCancelled
	dispFailed
)

// ─── Download Loop ──────────────────────────────────────────────────────────

// download drives one admission of a task: connect, stream, verify.
// Transient errors retry in place with exponential backoff without leaving
// the current state; fatal errors and budget exhaustion fail the task.
func (s *Scheduler) download(ctx context.Context, t *task) disposition {
	s.update(t, func(st *domain.TransferState) {
		st.Status = domain.TransferConnecting
		st.LastError = ""
	})

	delay := s.cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		err := s.attempt(ctx, t)
		if err == nil {
			st := t.snapshot()
			metrics.TransfersCompleted.WithLabelValues("completed").Inc()
			log.Printf("[scheduler] transfer %s completed (%s)", st.ID, domain.HumanSize(st.BytesReceived))
			return dispCompleted
		}

		if ctx.Err() != nil {
			t.mu.Lock()
			cancelled := t.cancelWanted
			t.mu.Unlock()
			if cancelled {
				s.discard(t)
				s.update(t, func(st *domain.TransferState) {
					st.Status = domain.TransferCancelled
					st.BytesReceived = 0
					st.ResumeToken = ""
				})
				metrics.TransfersCompleted.WithLabelValues("cancelled").Inc()
				log.Printf("[scheduler] transfer %s cancelled", t.snapshot().ID)
				return dispCancelled
			}
			// Pause request or daemon shutdown: bytes stay on disk, the
			// persisted row resumes this transfer later.
			s.update(t, func(st *domain.TransferState) {
				st.Status = domain.TransferPaused
			})
			return dispPaused
		}

		var terr *domain.TransferError
		if errors.As(err, &terr) {
			s.fail(t, terr.Kind, err)
			return dispFailed
		}

		if attempt >= s.cfg.MaxRetries {
			s.fail(t, domain.TransferNetworkError,
				&domain.TransferError{Kind: domain.TransferNetworkError, Err: err})
			return dispFailed
		}

		st := t.snapshot()
		log.Printf("[scheduler] transfer %s attempt %d/%d: %v (retrying in %s)",
			st.ID, attempt, s.cfg.MaxRetries, err, delay)
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.cfg.MaxDelay {
			delay = s.cfg.MaxDelay
		}
	}
}

// attempt performs one HTTP fetch of the remaining bytes. A nil return means
// the transfer verified and completed. *domain.TransferError returns are
// fatal to the task; every other error is transient and retried by the
// caller within the budget.
func (s *Scheduler) attempt(ctx context.Context, t *task) error {
	st := t.snapshot()
	offset := st.BytesReceived

	// The on-disk partial must line up with the acknowledged offset before a
	// resume. Bytes past the persisted offset were never acknowledged and are
	// dropped; a file shorter than the offset cannot be resumed at all.
	if offset > 0 {
		fi, err := os.Stat(st.DestPath)
		switch {
		case err != nil || fi.Size() < offset:
			offset = s.resetProgress(t)
		case fi.Size() > offset:
			if err := os.Truncate(st.DestPath, offset); err != nil {
				return storageError(err)
			}
		}
	}

	// Resume with nothing left to fetch: skip the network, re-verify.
	if offset > 0 && st.TotalBytes > 0 && offset >= st.TotalBytes {
		return s.verify(t)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.SourceURL, nil)
	if err != nil {
		return &domain.TransferError{Kind: domain.TransferNetworkError, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		if st.ResumeToken != "" {
			req.Header.Set("If-Range", st.ResumeToken)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var flags int
	total := st.TotalBytes
	switch resp.StatusCode {
	case http.StatusOK:
		// Full body from byte zero. On a resume this means the server either
		// ignored the Range header or the validator changed; the partial data
		// is stale and gets discarded.
		if offset > 0 {
			log.Printf("[scheduler] transfer %s: server sent full content, restarting from zero", st.ID)
			offset = s.resetProgress(t)
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if resp.ContentLength > 0 {
			total = resp.ContentLength
		}
	case http.StatusPartialContent:
		start, ctotal := parseContentRange(resp.Header.Get("Content-Range"))
		if start != offset {
			// A partial body at the wrong offset cannot be appended. Drop the
			// partial so the next attempt starts clean from zero.
			s.resetProgress(t)
			return fmt.Errorf("server resumed at byte %d, want %d", start, offset)
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if ctotal > 0 {
			total = ctotal
		} else if resp.ContentLength > 0 {
			total = offset + resp.ContentLength
		}
	case http.StatusRequestedRangeNotSatisfiable:
		s.resetProgress(t)
		return &domain.TransferError{
			Kind: domain.TransferServerRejectedRange,
			Err:  fmt.Errorf("range bytes=%d- rejected by server", offset),
		}
	default:
		return fmt.Errorf("HTTP %d from source", resp.StatusCode)
	}

	token := resp.Header.Get("ETag")

	f, err := os.OpenFile(st.DestPath, flags, 0o644)
	if err != nil {
		return storageError(err)
	}

	s.update(t, func(st *domain.TransferState) {
		st.Status = domain.TransferInProgress
		st.BytesReceived = offset
		st.TotalBytes = total
		st.ResumeToken = token
	})

	received, err := s.stream(t, f, resp.Body, offset)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = storageError(cerr)
	}
	if err != nil {
		return err
	}

	switch {
	case total > 0 && received < total:
		return fmt.Errorf("connection closed at byte %d of %d", received, total)
	case total > 0 && received > total:
		s.resetProgress(t)
		return fmt.Errorf("received %d bytes, expected %d", received, total)
	case total == 0:
		s.update(t, func(st *domain.TransferState) {
			st.TotalBytes = received
		})
	}

	return s.verify(t)
}

// stream copies the response body to the destination file, coalescing
// progress persistence and events to one update per ProgressInterval plus a
// final one on every exit. Written bytes are acknowledged even when the read
// side fails: they are on disk and a resume continues after them.
func (s *Scheduler) stream(t *task, f *os.File, body io.Reader, offset int64) (int64, error) {
	received := offset
	reported := offset
	last := time.Now()
	buf := make([]byte, 256*1024)

	flush := func() {
		if received == reported {
			return
		}
		s.update(t, func(st *domain.TransferState) {
			st.BytesReceived = received
		})
		metrics.TransferBytes.Add(float64(received - reported))
		reported = received
	}

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				flush()
				return received, storageError(werr)
			}
			received += int64(n)
			if time.Since(last) >= s.cfg.ProgressInterval {
				flush()
				last = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			flush()
			return received, readErr
		}
	}
	flush()
	return received, nil
}

// verify hashes the completed file and finishes the transfer. A digest
// mismatch deletes the corrupt file so a retry starts clean; a missing
// expected digest skips verification.
func (s *Scheduler) verify(t *task) error {
	st := t.snapshot()
	s.update(t, func(st *domain.TransferState) {
		st.Status = domain.TransferVerifying
	})

	if st.ExpectedDigest == "" {
		log.Printf("[scheduler] transfer %s: no expected digest, skipping verification", st.ID)
	} else if err := s.verifier.Verify(st.DestPath, st.ExpectedDigest); err != nil {
		if domain.IsTransferKind(err, domain.TransferDigestMismatch) {
			s.resetProgress(t)
		}
		return err
	}

	s.update(t, func(st *domain.TransferState) {
		st.Status = domain.TransferCompleted
	})
	return nil
}

// resetProgress discards partial data and rewinds the transfer to byte zero.
func (s *Scheduler) resetProgress(t *task) int64 {
	st := t.snapshot()
	if st.DestPath != "" {
		_ = os.Remove(st.DestPath)
	}
	s.update(t, func(st *domain.TransferState) {
		st.BytesReceived = 0
		st.ResumeToken = ""
	})
	return 0
}

// fail moves a task to failed with its classification attached.
func (s *Scheduler) fail(t *task, kind domain.TransferErrKind, err error) {
	t.mu.Lock()
	t.failKind = kind
	t.mu.Unlock()
	s.update(t, func(st *domain.TransferState) {
		st.Status = domain.TransferFailed
		st.LastError = err.Error()
	})
	metrics.TransfersCompleted.WithLabelValues("failed").Inc()
	log.Printf("[scheduler] transfer %s failed: %v", t.snapshot().ID, err)
}

// storageError classifies a destination write failure. Disk failures are
// fatal to that task only: retrying cannot free space or fix permissions.
func storageError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		err = fmt.Errorf("destination device full: %w", err)
	}
	return &domain.TransferError{Kind: domain.TransferInsufficientStorage, Err: err}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// parseContentRange extracts the start offset and total length from a header
// like "bytes 400000-999999/1000000". Start -1 means the header was absent
// or malformed; total 0 means the total is unknown ("*").
func parseContentRange(h string) (start, total int64) {
	h = strings.TrimSpace(h)
	if !strings.HasPrefix(h, "bytes ") {
		return -1, 0
	}
	spec, totalPart, ok := strings.Cut(strings.TrimPrefix(h, "bytes "), "/")
	if !ok {
		return -1, 0
	}
	startStr, _, ok := strings.Cut(spec, "-")
	if !ok {
		return -1, 0
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return -1, 0
	}
	if totalPart != "*" {
		if v, err := strconv.ParseInt(totalPart, 10, 64); err == nil {
			total = v
		}
	}
	return start, total
}

// destFileName derives a stable on-disk file name for a descriptor. Path
// separators and other unsafe characters collapse so every descriptor maps
// to exactly one flat file under the downloads dir.
func destFileName(d domain.ModelDescriptor) string {
	var b strings.Builder
	for _, r := range strings.ToLower(d.Name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == '/' || r == ':':
			b.WriteString("--")
		default:
			b.WriteRune('-')
		}
	}
	name := b.String()

	ext := ""
	if u, err := url.Parse(d.SourceURL); err == nil {
		switch e := strings.ToLower(path.Ext(u.Path)); e {
		case ".gguf", ".safetensors", ".bin", ".onnx":
			ext = e
		}
	}
	if ext == "" {
		if d.SupportsRuntime(domain.RuntimeGGUF) {
			ext = ".gguf"
		} else {
			ext = ".bin"
		}
	}
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}
