package catalog

import (
	"testing"

	"github.com/modelbay/modelbay/internal/domain"
)

func descriptorOfSize(size int64) domain.ModelDescriptor {
	return domain.ModelDescriptor{ID: "hub:o/m", Name: "o/m", SizeBytes: size}
}

func profileOfMemory(total int64) domain.ResourceProfile {
	return domain.ResourceProfile{TotalMemoryBytes: total, LogicalCores: 8, ActiveCores: 8}
}

func TestScore_Compatible(t *testing.T) {
	// 4 GB model: required = 4.8 GB, usable on 16 GB = 12.8 GB.
	d := descriptorOfSize(4 << 30)
	p := profileOfMemory(16 << 30)
	if v := Score(d, p); v != domain.VerdictCompatible {
		t.Errorf("verdict = %s, want compatible", v)
	}
}

func TestScore_NeedsMoreResources(t *testing.T) {
	// 12 GB model: required = 14.4 GB, usable on 16 GB = 12.8 GB.
	d := descriptorOfSize(12 << 30)
	p := profileOfMemory(16 << 30)
	if v := Score(d, p); v != domain.VerdictNeedsMore {
		t.Errorf("verdict = %s, want needsMoreResources", v)
	}
}

func TestScore_UnknownSize(t *testing.T) {
	if v := Score(descriptorOfSize(0), profileOfMemory(16<<30)); v != domain.VerdictUnknown {
		t.Errorf("verdict = %s, want unknown for sizeless descriptor", v)
	}
}

func TestScore_UnknownProfile(t *testing.T) {
	if v := Score(descriptorOfSize(1<<30), profileOfMemory(0)); v != domain.VerdictUnknown {
		t.Errorf("verdict = %s, want unknown for memoryless profile", v)
	}
}

// Exact boundary: compatible iff required <= usable.
func TestScore_Boundary(t *testing.T) {
	// total = 10 GB -> usable = 8 GB. required <= 8 GB means size <= 8/1.2 GB.
	total := int64(10 << 30)
	usable := int64(float64(total) * (1 - memoryHeadroomFraction))
	fits := int64(float64(usable) / memoryOverheadFactor)

	if v := Score(descriptorOfSize(fits), profileOfMemory(total)); v != domain.VerdictCompatible {
		t.Errorf("size at boundary scored %s, want compatible", v)
	}
	if v := Score(descriptorOfSize(fits+(1<<20)), profileOfMemory(total)); v != domain.VerdictNeedsMore {
		t.Errorf("size above boundary scored %s, want needsMoreResources", v)
	}
}

// Growing the profile's memory never flips compatible to needsMoreResources.
func TestScore_MonotonicInProfile(t *testing.T) {
	d := descriptorOfSize(6 << 30)
	prev := domain.VerdictNeedsMore
	for _, total := range []int64{4 << 30, 8 << 30, 16 << 30, 32 << 30, 64 << 30} {
		v := Score(d, profileOfMemory(total))
		if prev == domain.VerdictCompatible && v == domain.VerdictNeedsMore {
			t.Fatalf("verdict regressed from compatible at total=%d", total)
		}
		prev = v
	}
	if prev != domain.VerdictCompatible {
		t.Errorf("largest profile scored %s, want compatible", prev)
	}
}
