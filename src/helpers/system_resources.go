package helpers

import "runtime"

const fallbackMemoryLimitMB = 512

// GetRecommendedMemoryLimit returns the heap budget for in-process caches in MB.
// Policy: 25% of total RAM, never below 128MB; 512MB when RAM is unknown.
func GetRecommendedMemoryLimit() int {
	totalMB := GetTotalSystemMemoryMB()
	if totalMB == 0 {
		return fallbackMemoryLimitMB
	}

	limit := totalMB / 4
	if limit < 128 {
		if totalMB < 128 {
			return totalMB
		}
		return 128
	}
	return limit
}

// -----------------------------------------------------------------------------

// ProcessHeapMB returns the current Go heap allocation in MB.
func ProcessHeapMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024
}
