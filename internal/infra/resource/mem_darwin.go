//go:build darwin

package resource

import (
	"os/exec"
	"strconv"
	"strings"
)

// readTotalMemory reads total system memory on macOS via sysctl.
func readTotalMemory() int64 {
	out, err := exec.Command("sysctl", "-n", "hw.memsize").Output()
	if err != nil {
		return 0
	}
	bytes, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0
	}
	return bytes
}
