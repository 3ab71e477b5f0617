package models

import "time"

// Interruption severities.
const (
	SeverityMinor    = "minor"
	SeverityMajor    = "major"
	SeverityCritical = "critical"
)

// MInterruption is a sustained undervoltage episode.
type MInterruption struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds float64   `json:"duration_seconds"`
	MinVoltage      float64   `json:"min_voltage"`
	Severity        string    `json:"severity"`
	Ongoing         bool      `json:"ongoing"`
}

// MInterruptionSummary aggregates the interruptions found in one sequence.
type MInterruptionSummary struct {
	Count                int             `json:"count"`
	TotalDurationSeconds float64         `json:"total_duration_seconds"`
	AvgDurationMinutes   float64         `json:"avg_duration_minutes"`
	TotalDowntimeMinutes float64         `json:"total_downtime_minutes"`
	Longest              *MInterruption  `json:"longest,omitempty"`
	MostRecent           *MInterruption  `json:"most_recent,omitempty"`
	Details              []MInterruption `json:"details"`
}
