package models

import "time"

// Resolution values for aggregated output.
const (
	ResolutionRaw    = "raw"
	ResolutionMinute = "minute"
	ResolutionHour   = "hour"
	ResolutionDay    = "day"
)

// Aggregation modes.
const (
	ModeRaw      = "raw"
	ModeUniform  = "uniform_with_anomaly_preservation"
	ModeWindowed = "windowed_statistics"
)

// MWindowStats are the per-parameter statistics of one window.
type MWindowStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	Std float64 `json:"std"`
}

// MAggregationWindow is one PAA bucket.
type MAggregationWindow struct {
	WindowKey    string                     `json:"window_key"` // e.g., "13:00", "2025-03-10"
	Resolution   string                     `json:"resolution"`
	Start        time.Time                  `json:"start"`
	End          time.Time                  `json:"end"`
	Parameters   map[Parameter]MWindowStats `json:"parameters"`
	SampleCount  int                        `json:"sample_count"`
	AnomalyCount int                        `json:"anomaly_count"`
	BusinessDay  *bool                      `json:"business_day,omitempty"`
}
