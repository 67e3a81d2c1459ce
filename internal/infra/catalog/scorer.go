package catalog

import "github.com/modelbay/modelbay/internal/domain"

// Compatibility scoring constants. The overhead factor covers what loading
// actually costs beyond the artifact size (runtime buffers, KV cache); the
// headroom fraction is memory the OS and other applications keep.
const (
	memoryOverheadFactor   = 1.2
	memoryHeadroomFraction = 0.2
)

// Score computes the compatibility verdict for one descriptor against the
// machine profile. Pure function of its inputs: no state, recomputed on
// every query so it always reflects the live profile.
func Score(d domain.ModelDescriptor, p domain.ResourceProfile) domain.Verdict {
	if !d.HasKnownSize() || p.TotalMemoryBytes <= 0 {
		return domain.VerdictUnknown
	}
	required := int64(float64(d.SizeBytes) * memoryOverheadFactor)
	usable := int64(float64(p.TotalMemoryBytes) * (1 - memoryHeadroomFraction))
	if required <= usable {
		return domain.VerdictCompatible
	}
	return domain.VerdictNeedsMore
}
