//go:build !linux && !darwin

package helpers

// GetTotalSystemMemoryMB is unknown on this platform; callers fall back to defaults.
func GetTotalSystemMemoryMB() int {
	return 0
}
