package resource

import (
	"strings"
	"testing"
)

// ─── Profile Capture Tests ──────────────────────────────────────────────────

func TestCapture_Stable(t *testing.T) {
	first := Capture()
	second := Capture()
	if first != second {
		t.Errorf("Capture not stable across calls: %+v vs %+v", first, second)
	}
}

func TestCapture_Cores(t *testing.T) {
	p := Capture()
	if p.LogicalCores < 1 {
		t.Errorf("LogicalCores = %d, want >= 1", p.LogicalCores)
	}
	if p.ActiveCores < 1 || p.ActiveCores > p.LogicalCores {
		t.Errorf("ActiveCores = %d, want 1..%d", p.ActiveCores, p.LogicalCores)
	}
}

func TestCapture_Label(t *testing.T) {
	p := Capture()
	if p.Label == "" {
		t.Error("Label is empty")
	}
	if !strings.Contains(p.Label, "/") {
		t.Errorf("Label %q missing os/arch suffix", p.Label)
	}
}

func TestCapture_Memory(t *testing.T) {
	p := Capture()
	// A failed probe reports 0; anything else must be a plausible size.
	if p.TotalMemoryBytes < 0 {
		t.Errorf("TotalMemoryBytes = %d, want >= 0", p.TotalMemoryBytes)
	}
	if p.TotalMemoryBytes > 0 && p.TotalMemoryBytes < 1<<20 {
		t.Errorf("TotalMemoryBytes = %d, implausibly small", p.TotalMemoryBytes)
	}
}
