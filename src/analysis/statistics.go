package analysis

import (
	"fmt"
	"time"

	"power-observer/src/analysis/core"
	"power-observer/src/models"
	"power-observer/src/utils"
)

// Anomaly severity buckets by percentage of flagged readings.
const (
	AnomalySeverityNone   = "none"
	AnomalySeverityLow    = "low"
	AnomalySeverityMedium = "medium"
	AnomalySeverityHigh   = "high"
)

// Power quality levels of the latest reading.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityPoor      = "poor"
	QualityUnknown   = "unknown"
)

// -----------------------------------------------------------------------------

// ComputeParameterStats summarizes every parameter over readings, rounded to
// 2 decimals. Count is the number of readings carrying the parameter.
func ComputeParameterStats(readings []models.MReading) map[models.Parameter]models.MParameterStats {
	out := make(map[models.Parameter]models.MParameterStats, len(models.MonitoredParameters))
	for _, p := range models.MonitoredParameters {
		values := make([]float64, 0, len(readings))
		for _, r := range readings {
			if v, ok := r.Value(p); ok {
				values = append(values, v)
			}
		}
		lo, hi := core.MinMax(values)
		mean, _ := core.CalculateMeanStd(values)
		out[p] = models.MParameterStats{
			Min:   core.Round(lo, 2),
			Max:   core.Round(hi, 2),
			Avg:   core.Round(mean, 2),
			Count: len(values),
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// StatsFromWindows derives parameter statistics from PAA windows: min of
// mins, max of maxes and the sample-weighted mean of window means.
func StatsFromWindows(windows []models.MAggregationWindow) map[models.Parameter]models.MParameterStats {
	out := make(map[models.Parameter]models.MParameterStats, len(models.MonitoredParameters))
	for _, p := range models.MonitoredParameters {
		var mins, maxs, means []float64
		var weights []int
		for _, w := range windows {
			st, ok := w.Parameters[p]
			if !ok {
				continue
			}
			mins = append(mins, st.Min)
			maxs = append(maxs, st.Max)
			means = append(means, st.Avg)
			weights = append(weights, w.SampleCount)
		}
		lo, _ := core.MinMax(mins)
		_, hi := core.MinMax(maxs)
		count := 0
		for _, n := range weights {
			count += n
		}
		out[p] = models.MParameterStats{
			Min:   core.Round(lo, 2),
			Max:   core.Round(hi, 2),
			Avg:   core.Round(core.WeightedMean(means, weights), 2),
			Count: count,
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// AnomalySeverity buckets an anomaly percentage.
func AnomalySeverity(percentage float64) string {
	switch {
	case percentage == 0:
		return AnomalySeverityNone
	case percentage < 5:
		return AnomalySeverityLow
	case percentage < 15:
		return AnomalySeverityMedium
	}
	return AnomalySeverityHigh
}

// -----------------------------------------------------------------------------

// BuildAnomalySummary counts flagged readings and the parameters that triggered them.
func BuildAnomalySummary(flagged []models.MReading) models.MAnomalySummary {
	s := models.MAnomalySummary{
		Total:      len(flagged),
		Parameters: make(map[models.Parameter]int, len(models.MonitoredParameters)),
	}
	for _, p := range models.MonitoredParameters {
		s.Parameters[p] = 0
	}
	for _, r := range flagged {
		if !r.IsAnomaly {
			continue
		}
		s.Count++
		for _, p := range r.AnomalyParameters {
			s.Parameters[p]++
		}
	}
	pct := core.Percentage(s.Count, s.Total)
	s.Percentage = core.Round(pct, 2)
	s.Severity = AnomalySeverity(pct)
	return s
}

// -----------------------------------------------------------------------------

// BuildSeries produces one ascending series per parameter. Points carry a
// "YYYY-MM-DD HH:MM:SS" time in loc and unix milliseconds.
func BuildSeries(readings []models.MReading, loc *time.Location) map[models.Parameter][]models.MGraphPoint {
	if loc == nil {
		loc = time.UTC
	}
	sorted := sortedCopy(readings)
	out := make(map[models.Parameter][]models.MGraphPoint, len(models.MonitoredParameters))
	for _, p := range models.MonitoredParameters {
		points := make([]models.MGraphPoint, 0, len(sorted))
		for _, r := range sorted {
			v, ok := r.Value(p)
			if !ok {
				continue
			}
			points = append(points, models.MGraphPoint{
				Time:      r.Timestamp.In(loc).Format(utils.TimestampLayout),
				Timestamp: r.Timestamp.UnixMilli(),
				Value:     v,
				IsAnomaly: r.IsAnomaly,
			})
		}
		out[p] = points
	}
	return out
}

// -----------------------------------------------------------------------------

// BuildWindowSeries plots window means at the window start; a point is
// flagged when its window holds any anomaly.
func BuildWindowSeries(windows []models.MAggregationWindow, loc *time.Location) map[models.Parameter][]models.MGraphPoint {
	if loc == nil {
		loc = time.UTC
	}
	out := make(map[models.Parameter][]models.MGraphPoint, len(models.MonitoredParameters))
	for _, p := range models.MonitoredParameters {
		points := make([]models.MGraphPoint, 0, len(windows))
		for _, w := range windows {
			st, ok := w.Parameters[p]
			if !ok {
				continue
			}
			points = append(points, models.MGraphPoint{
				Time:      w.Start.In(loc).Format(utils.TimestampLayout),
				Timestamp: w.Start.UnixMilli(),
				Value:     core.Round(st.Avg, 2),
				IsAnomaly: w.AnomalyCount > 0,
			})
		}
		out[p] = points
	}
	return out
}

// -----------------------------------------------------------------------------

// LatestReading returns a copy of the reading with the greatest timestamp.
func LatestReading(readings []models.MReading) *models.MReading {
	if len(readings) == 0 {
		return nil
	}
	latest := readings[0]
	for _, r := range readings[1:] {
		if !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	c := latest.Clone()
	return &c
}

// -----------------------------------------------------------------------------

// EvaluatePowerQuality grades a reading against the supply tolerance bands.
func EvaluatePowerQuality(r *models.MReading) models.MPowerQuality {
	if r == nil {
		return models.MPowerQuality{Level: QualityUnknown, Reasons: []string{"no readings"}}
	}

	inBand := func(v, lo, hi float64) bool { return v >= lo && v <= hi }

	if inBand(r.Voltage, 220, 240) && inBand(r.Frequency, 59.8, 60.2) && r.PowerFactor >= 0.95 {
		return models.MPowerQuality{Level: QualityExcellent, Reasons: []string{}}
	}
	if inBand(r.Voltage, 218.51, 241.49) && inBand(r.Frequency, 59.5, 60.5) && r.PowerFactor >= 0.8 {
		return models.MPowerQuality{Level: QualityGood, Reasons: []string{}}
	}

	var reasons []string
	if !inBand(r.Voltage, 218.51, 241.49) {
		reasons = append(reasons, fmt.Sprintf("voltage %.2fV outside 218.51-241.49V", r.Voltage))
	}
	if !inBand(r.Frequency, 59.5, 60.5) {
		reasons = append(reasons, fmt.Sprintf("frequency %.2fHz outside 59.5-60.5Hz", r.Frequency))
	}
	if r.PowerFactor < 0.8 {
		reasons = append(reasons, fmt.Sprintf("power factor %.2f below 0.8", r.PowerFactor))
	}
	return models.MPowerQuality{Level: QualityPoor, Reasons: reasons}
}
