package models

// MCacheStats is the snapshot returned by the cache management surface.
type MCacheStats struct {
	TotalItems          int            `json:"total_cached_items"`
	TotalNodes          int            `json:"total_nodes_cached"`
	ItemsByNode         map[string]int `json:"items_by_node"`
	AvgSecondsRemaining int            `json:"avg_seconds_remaining"`
	Hits                int64          `json:"hits"`
	Misses              int64          `json:"misses"`
}
