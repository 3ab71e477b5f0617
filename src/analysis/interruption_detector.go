package analysis

import (
	"time"

	"power-observer/src/analysis/core"
	"power-observer/src/models"
)

const (
	DefaultVoltageThreshold = 180.0
	DefaultMinDuration      = 30 * time.Second
)

// InterruptionDetector finds sustained undervoltage episodes.
type InterruptionDetector struct {
	VoltageThreshold float64
	MinDuration      time.Duration
}

// -----------------------------------------------------------------------------

func NewInterruptionDetector(cfg models.MInterruptionConfig) *InterruptionDetector {
	d := &InterruptionDetector{
		VoltageThreshold: cfg.VoltageThreshold,
		MinDuration:      time.Duration(cfg.MinDurationSeconds * float64(time.Second)),
	}
	if d.VoltageThreshold <= 0 {
		d.VoltageThreshold = DefaultVoltageThreshold
	}
	if cfg.MinDurationSeconds < 0 {
		d.MinDuration = DefaultMinDuration
	}
	return d
}

// -----------------------------------------------------------------------------

// Classify maps the lowest voltage of an episode to a severity.
func Classify(minVoltage float64) string {
	switch {
	case minVoltage < 100:
		return models.SeverityCritical
	case minVoltage < 150:
		return models.SeverityMajor
	}
	return models.SeverityMinor
}

// -----------------------------------------------------------------------------

// Detect runs the NORMAL/INTERRUPTED state machine over readings in timestamp
// order. Episodes shorter than MinDuration are dropped; an episode still open
// at the last reading ends there and is marked ongoing. Readings without a
// voltage value do not change state.
func (d *InterruptionDetector) Detect(readings []models.MReading) models.MInterruptionSummary {
	sorted := sortedCopy(readings)

	var details []models.MInterruption
	var last time.Time
	interrupted := false
	var start time.Time
	var minVoltage float64

	emit := func(end time.Time, ongoing bool) {
		duration := end.Sub(start)
		if duration < d.MinDuration {
			return
		}
		details = append(details, models.MInterruption{
			Start:           start,
			End:             end,
			DurationSeconds: duration.Seconds(),
			MinVoltage:      minVoltage,
			Severity:        Classify(minVoltage),
			Ongoing:         ongoing,
		})
	}

	for _, r := range sorted {
		v, ok := r.Value(models.ParamVoltage)
		if !ok {
			continue
		}
		last = r.Timestamp

		switch {
		case !interrupted && v < d.VoltageThreshold:
			interrupted = true
			start = r.Timestamp
			minVoltage = v
		case interrupted && v < d.VoltageThreshold:
			if v < minVoltage {
				minVoltage = v
			}
		case interrupted:
			interrupted = false
			emit(r.Timestamp, false)
		}
	}
	if interrupted {
		emit(last, true)
	}

	return Summarize(details)
}

// -----------------------------------------------------------------------------

// Summarize totals a list of interruptions in chronological order.
func Summarize(details []models.MInterruption) models.MInterruptionSummary {
	s := models.MInterruptionSummary{Count: len(details), Details: details}
	if s.Details == nil {
		s.Details = []models.MInterruption{}
	}
	if s.Count == 0 {
		return s
	}

	for i := range s.Details {
		it := &s.Details[i]
		s.TotalDurationSeconds += it.DurationSeconds
		if s.Longest == nil || it.DurationSeconds > s.Longest.DurationSeconds {
			s.Longest = it
		}
	}
	recent := s.Details[len(s.Details)-1]
	s.MostRecent = &recent
	longest := *s.Longest
	s.Longest = &longest

	s.AvgDurationMinutes = core.Round(s.TotalDurationSeconds/float64(s.Count)/60, 1)
	s.TotalDowntimeMinutes = core.Round(s.TotalDurationSeconds/60, 1)
	return s
}
