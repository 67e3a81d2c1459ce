// Package resource captures the local machine's capacity profile.
// The profile is read once per process lifetime and never mutated; the
// compatibility scorer recomputes verdicts against it on every query.
package resource

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/modelbay/modelbay/internal/domain"
)

var (
	captureOnce sync.Once
	captured    domain.ResourceProfile
)

// Capture returns the process-wide resource profile. The first call probes
// the OS; later calls return the same snapshot.
func Capture() domain.ResourceProfile {
	captureOnce.Do(func() {
		captured = probe()
	})
	return captured
}

// probe reads memory and core counts from the running system.
// A failed memory probe yields 0 bytes, which downstream scoring reports
// as an unknown verdict rather than an error.
func probe() domain.ResourceProfile {
	total := readTotalMemory()

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = runtime.GOOS
	}

	return domain.ResourceProfile{
		TotalMemoryBytes: total,
		LogicalCores:     runtime.NumCPU(),
		ActiveCores:      runtime.GOMAXPROCS(0),
		Label:            fmt.Sprintf("%s (%s/%s)", host, runtime.GOOS, runtime.GOARCH),
	}
}
