//go:build darwin

package helpers

import "golang.org/x/sys/unix"

// GetTotalSystemMemoryMB returns the total physical memory in MB.
func GetTotalSystemMemoryMB() int {
	bytes, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0
	}
	return int(bytes / 1024 / 1024)
}
