//go:build windows

package resource

import (
	"os/exec"
	"strconv"
	"strings"
)

// readTotalMemory reads total system memory on Windows via CIM.
// Returns 0 if the query fails (scored as unknown, never an error).
func readTotalMemory() int64 {
	out, err := exec.Command("powershell", "-NoProfile", "-Command",
		`(Get-CimInstance Win32_ComputerSystem -ErrorAction SilentlyContinue).TotalPhysicalMemory`).Output()
	if err != nil {
		return 0
	}
	bytes, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0
	}
	return bytes
}
