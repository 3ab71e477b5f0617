package models

import "time"

// -----------------------------------------------------------------------------
// Dashboard Payload
// -----------------------------------------------------------------------------

// MParameterStats are the summary statistics of one parameter.
type MParameterStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// MAnomalySummary describes how many readings were flagged.
type MAnomalySummary struct {
	Count      int               `json:"count"`
	Total      int               `json:"total"`
	Percentage float64           `json:"percentage"`
	Parameters map[Parameter]int `json:"parameters"`
	Severity   string            `json:"severity"` // none, low, medium, high
}

// MGraphPoint is one point of a per-parameter series.
type MGraphPoint struct {
	Time      string  `json:"time"`      // "YYYY-MM-DD HH:MM:SS"
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Value     float64 `json:"value"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// MPowerQuality is the "current status" evaluation of the latest reading.
type MPowerQuality struct {
	Level   string   `json:"level"` // excellent, good, poor
	Reasons []string `json:"reasons"`
}

type MDashboardPayload struct {
	Node           string                        `json:"node"`
	StartDate      string                        `json:"start_date"`
	EndDate        string                        `json:"end_date"`
	Preset         string                        `json:"preset"`
	Mode           string                        `json:"mode"`
	Resolution     string                        `json:"resolution"`
	Stride         int                           `json:"stride"`
	TotalReadings  int                           `json:"total_readings"`
	SampleCount    int                           `json:"sample_count"`
	DaysRequested  int                           `json:"days_requested"`
	DaysWithData   int                           `json:"days_with_data"`
	DegradedDays   []string                      `json:"degraded_days"`
	Readings       []MReading                    `json:"readings,omitempty"`
	Windows        []MAggregationWindow          `json:"windows,omitempty"`
	Statistics     map[Parameter]MParameterStats `json:"statistics"`
	AnomalySummary MAnomalySummary               `json:"anomaly_summary"`
	Interruptions  MInterruptionSummary          `json:"interruptions"`
	Series         map[Parameter][]MGraphPoint   `json:"series"`
	LatestReading  *MReading                     `json:"latest_reading"`
	PowerQuality   MPowerQuality                 `json:"power_quality"`
	GeneratedAt    time.Time                     `json:"generated_at"`
}

// -----------------------------------------------------------------------------
// Time Series / Comparison
// -----------------------------------------------------------------------------

type MTimeSeriesResponse struct {
	Node          string               `json:"node"`
	Mode          string               `json:"mode"`
	Resolution    string               `json:"resolution"`
	Stride        int                  `json:"stride"`
	TotalReadings int                  `json:"total_readings"`
	SampleCount   int                  `json:"sample_count"`
	DegradedDays  []string             `json:"degraded_days"`
	Readings      []MReading           `json:"readings,omitempty"`
	Windows       []MAggregationWindow `json:"windows,omitempty"`
}

type MNodeComparison struct {
	Node          string                        `json:"node"`
	Readings      []MReading                    `json:"readings"`
	Statistics    map[Parameter]MParameterStats `json:"statistics"`
	LatestReading *MReading                     `json:"latest_reading"`
}

type MNodeDateRange struct {
	Node     string   `json:"node"`
	Earliest string   `json:"earliest,omitempty"`
	Latest   string   `json:"latest,omitempty"`
	Days     []string `json:"days"`
}
