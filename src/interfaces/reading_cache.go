package interfaces

import (
	"time"

	"power-observer/src/models"
)

// -----------------------------------------------------------------------------
// IReadingCache is the per-day cache consulted before the store.
// -----------------------------------------------------------------------------

type IReadingCache interface {

	// Get returns a copy of the cached day, or false when absent or expired.
	Get(node string, year, month, day int) ([]models.MReading, bool)

	// -----------------------------------------------------------------------------

	// Set replaces the day wholesale. A non-nil error means the entry was not stored.
	Set(node string, year, month, day int, readings []models.MReading, ttl time.Duration) error

	// -----------------------------------------------------------------------------

	// Clear drops every entry of node, or everything when node is empty.
	Clear(node string) int

	// -----------------------------------------------------------------------------

	Stats() models.MCacheStats

	ListCachedNodes() []string
}
