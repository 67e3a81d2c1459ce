package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Terminal progress for downloads:
//   [=============>................]  42% | 1.2GB / 2.8GB | 45.2MB/s | ETA 35s

const barWidth = 30 // Characters for the progress bar

type progressBar struct {
	lastAt    time.Time
	lastBytes int64
	speed     float64 // bytes/sec, smoothed
}

func newProgressBar(startOffset int64) *progressBar {
	return &progressBar{lastAt: time.Now(), lastBytes: startOffset}
}

// update renders one line for the transfer's current state.
func (p *progressBar) update(st domain.TransferState) {
	switch st.Status {
	case domain.TransferQueued:
		clearLine()
		fmt.Fprintf(os.Stderr, "[...] waiting for a download slot")
	case domain.TransferConnecting:
		clearLine()
		fmt.Fprintf(os.Stderr, "[...] connecting")
	case domain.TransferVerifying:
		clearLine()
		fmt.Fprintf(os.Stderr, "[...] verifying sha256")
	case domain.TransferInProgress:
		p.renderBar(st)
	}
}

func (p *progressBar) renderBar(st domain.TransferState) {
	now := time.Now()
	if dt := now.Sub(p.lastAt).Seconds(); dt >= 0.2 {
		instant := float64(st.BytesReceived-p.lastBytes) / dt
		if p.speed == 0 {
			p.speed = instant
		} else {
			p.speed = 0.7*p.speed + 0.3*instant
		}
		p.lastAt = now
		p.lastBytes = st.BytesReceived
	}

	// Unknown total: no bar, just the running count.
	if st.TotalBytes <= 0 {
		clearLine()
		fmt.Fprintf(os.Stderr, "  %s / ? | %s", domain.HumanSize(st.BytesReceived), formatSpeed(p.speed))
		return
	}

	pct := st.Progress()
	if pct > 100 {
		pct = 100
	}

	// Build the bar: [=======>............]
	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	var bar string
	if filled == barWidth {
		bar = strings.Repeat("=", filled)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	} else {
		bar = strings.Repeat(".", barWidth)
	}

	clearLine()
	fmt.Fprintf(os.Stderr, "  [%s] %3.0f%% | %s / %s | %s | %s",
		bar, pct,
		domain.HumanSize(st.BytesReceived), domain.HumanSize(st.TotalBytes),
		formatSpeed(p.speed), p.eta(st))
}

func (p *progressBar) eta(st domain.TransferState) string {
	if p.speed <= 0 || st.TotalBytes <= 0 || st.BytesReceived >= st.TotalBytes {
		return "ETA --"
	}
	remaining := float64(st.TotalBytes-st.BytesReceived) / p.speed

	if remaining < 60 {
		return fmt.Sprintf("ETA %ds", int(remaining))
	}
	if remaining < 3600 {
		return fmt.Sprintf("ETA %dm%ds", int(remaining)/60, int(remaining)%60)
	}
	return fmt.Sprintf("ETA %dh%dm", int(remaining)/3600, (int(remaining)%3600)/60)
}

func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "-- MB/s"
	}
	return domain.HumanSize(int64(bytesPerSec)) + "/s"
}

func clearLine() {
	fmt.Fprintf(os.Stderr, "\r\033[K")
}

// watchTransfer renders progress for one transfer until it leaves the live
// path. Progress events can be dropped under load, so a ticker re-reads the
// authoritative state as a fallback.
func watchTransfer(d *daemon.Daemon, id string) error {
	events, cancel := d.Scheduler.Subscribe()
	defer cancel()

	st, err := d.Scheduler.Get(id)
	if err != nil {
		return err
	}
	bar := newProgressBar(st.BytesReceived)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("scheduler shut down mid-download")
			}
			if ev.State.ID != id {
				continue
			}
			st = ev.State
		case <-ticker.C:
			cur, err := d.Scheduler.Get(id)
			if err != nil {
				return err
			}
			st = cur
		}

		bar.update(st)
		switch st.Status {
		case domain.TransferCompleted:
			clearLine()
			fmt.Fprintf(os.Stderr, "[done] %s verified\n", st.Name)
			return nil
		case domain.TransferPaused:
			clearLine()
			fmt.Fprintf(os.Stderr, "[paused] %s at %s\n", st.Name, domain.HumanSize(st.BytesReceived))
			return nil
		case domain.TransferFailed:
			clearLine()
			return fmt.Errorf("download failed: %s", st.LastError)
		case domain.TransferCancelled:
			clearLine()
			return fmt.Errorf("download cancelled")
		}
	}
}
