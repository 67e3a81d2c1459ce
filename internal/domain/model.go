// Package domain holds the core modelbay types.
// A ModelDescriptor is the canonical record for one downloadable artifact:
// discover → merge → score → download → verify → install.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Sources ────────────────────────────────────────────────────────────────

// Source identifies the registry a descriptor originated from.
type Source string

const (
	SourceHub      Source = "hub"
	SourceRegistry Source = "registry"
)

// ─── Runtimes ───────────────────────────────────────────────────────────────

// Runtime classifies which local inference backend can load an artifact.
// Inferred from file extension and quantization tag at merge time.
type Runtime string

const (
	RuntimeGGUF        Runtime = "gguf"
	RuntimeMLX         Runtime = "mlx"
	RuntimeONNX        Runtime = "onnx"
	RuntimeUnspecified Runtime = "unspecified"
)

// ─── Model Descriptor ───────────────────────────────────────────────────────

// ModelDescriptor is the canonical, immutable record for one model artifact.
// Created by the catalog merger; replaced wholesale on each refresh, never
// mutated in place.
type ModelDescriptor struct {
	ID           string    `json:"id"` // stable: "source:owner/name", lowercase
	Name         string    `json:"name"`
	Version      string    `json:"version,omitempty"`
	Source       Source    `json:"source"`
	SizeBytes    int64     `json:"size_bytes"` // 0 = unknown
	Quantization string    `json:"quantization,omitempty"`
	Runtimes     []Runtime `json:"runtimes"`
	Tags         []string  `json:"tags,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	Digest       string    `json:"digest,omitempty"` // "sha256:<hex>"
	Gated        bool      `json:"-"`                // filtered before the store, never serialized
}

// DescriptorID builds the stable identifier for a source-qualified model name.
// Lowercased so the same repo listed with different casings collapses to one id.
func DescriptorID(source Source, name string) string {
	return string(source) + ":" + strings.ToLower(name)
}

// HasKnownSize reports whether the descriptor declares a byte size.
func (d ModelDescriptor) HasKnownSize() bool { return d.SizeBytes > 0 }

// SupportsRuntime reports whether the descriptor targets the given runtime.
func (d ModelDescriptor) SupportsRuntime(rt Runtime) bool {
	for _, r := range d.Runtimes {
		if r == rt {
			return true
		}
	}
	return false
}

// MetadataRichness ranks how much usable metadata a descriptor carries.
// Used as the dedup tie-break: on an id collision the richer record wins.
func (d ModelDescriptor) MetadataRichness() int {
	score := 0
	if len(d.Tags) > 0 {
		score += 2
	}
	if d.SizeBytes > 0 {
		score += 2
	}
	if d.Digest != "" {
		score++
	}
	if d.Quantization != "" {
		score++
	}
	return score
}

// ─── Catalog Snapshot ───────────────────────────────────────────────────────

// Snapshot is one immutable point-in-time view of the merged catalog.
// Readers share snapshots freely; nothing mutates one after publication.
type Snapshot struct {
	Models      []ModelDescriptor `json:"models"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// Len returns the number of descriptors in the snapshot.
func (s Snapshot) Len() int { return len(s.Models) }

// Lookup returns the descriptor with the given stable id.
func (s Snapshot) Lookup(id string) (ModelDescriptor, bool) {
	for _, m := range s.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// ─── Compatibility ──────────────────────────────────────────────────────────

// Verdict classifies a descriptor against the local machine's resources.
type Verdict string

const (
	VerdictCompatible Verdict = "compatible"
	VerdictNeedsMore  Verdict = "needsMoreResources"
	VerdictUnknown    Verdict = "unknown"
)

// ResourceProfile is a read-only snapshot of local machine capacity,
// captured once per process lifetime.
type ResourceProfile struct {
	TotalMemoryBytes int64  `json:"total_memory_bytes"`
	LogicalCores     int    `json:"logical_cores"`
	ActiveCores      int    `json:"active_cores"`
	Label            string `json:"label"`
}

// String returns a short human-readable profile summary.
func (p ResourceProfile) String() string {
	return fmt.Sprintf("%s (%d cores, %s)", p.Label, p.LogicalCores, HumanSize(p.TotalMemoryBytes))
}
