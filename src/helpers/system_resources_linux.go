//go:build linux

package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// GetTotalSystemMemoryMB returns the memory available to the process in MB:
// the cgroup v2 limit when one is set, otherwise MemTotal.
func GetTotalSystemMemoryMB() int {
	if limit := cgroupMemoryLimitMB("/sys/fs/cgroup/memory.max"); limit > 0 {
		return limit
	}
	return memInfoTotalMB("/proc/meminfo")
}

// -----------------------------------------------------------------------------

func cgroupMemoryLimitMB(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	value := strings.TrimSpace(string(raw))
	if value == "" || value == "max" {
		return 0
	}
	bytes, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return int(bytes / 1024 / 1024)
}

// -----------------------------------------------------------------------------

func memInfoTotalMB(path string) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
