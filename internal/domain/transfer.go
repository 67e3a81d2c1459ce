package domain

import "time"

// TransferStatus tracks the download state machine.
type TransferStatus string

const (
	TransferQueued     TransferStatus = "queued"
	TransferConnecting TransferStatus = "connecting"
	TransferInProgress TransferStatus = "inProgress"
	TransferPaused     TransferStatus = "paused"
	TransferVerifying  TransferStatus = "verifying"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
	TransferCancelled  TransferStatus = "cancelled"
)

// IsTerminal returns true once no further transitions are possible.
// A failed transfer is not terminal: it can be retried from its last offset.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferCompleted || s == TransferCancelled
}

// IsActive returns true while the transfer occupies a scheduler slot.
func (s TransferStatus) IsActive() bool {
	return s == TransferConnecting || s == TransferInProgress || s == TransferVerifying
}

// TransferState is the observable data of one transfer. It references its
// descriptor by id only: the catalog may have been replaced mid-download and
// a live pointer would go stale.
type TransferState struct {
	ID             string         `json:"id"`
	DescriptorID   string         `json:"descriptor_id"`
	Name           string         `json:"name"`
	SourceURL      string         `json:"source_url"`
	DestPath       string         `json:"dest_path"`
	BytesReceived  int64          `json:"bytes_received"`
	TotalBytes     int64          `json:"total_bytes"` // 0 = unknown
	ResumeToken    string         `json:"resume_token,omitempty"`
	ExpectedDigest string         `json:"expected_digest,omitempty"`
	Status         TransferStatus `json:"status"`
	LastError      string         `json:"last_error,omitempty"`
	EnqueuedAt     time.Time      `json:"enqueued_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Progress returns completion percent, or -1 when the total is unknown.
func (t TransferState) Progress() float64 {
	if t.TotalBytes <= 0 {
		return -1
	}
	return float64(t.BytesReceived) / float64(t.TotalBytes) * 100
}

// TransferEvent is broadcast on every state transition and on coalesced
// progress ticks. Per transfer, BytesReceived never decreases across events.
type TransferEvent struct {
	State TransferState `json:"state"`
	At    time.Time     `json:"at"`
}

// ─── Installed Artifacts ────────────────────────────────────────────────────

// InstalledModel is a completed, verified artifact in the local library.
// This is what the runtime collaborator receives.
type InstalledModel struct {
	DescriptorID string    `json:"descriptor_id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	Digest       string    `json:"digest,omitempty"`
	Runtimes     []Runtime `json:"runtimes"`
	InstalledAt  time.Time `json:"installed_at"`
}
