package main

import (
	"math"
	"math/rand"
	"time"

	"power-observer/src/analysis"
	"power-observer/src/models"
	"power-observer/src/storage"
)

// generatorConfig controls the synthetic day.
type generatorConfig struct {
	Node        string
	Interval    time.Duration
	AnomalyRate float64       // share of samples pushed out of band
	DipStart    time.Duration // offset from midnight
	DipLength   time.Duration // 0 disables the dip
	DipVoltage  float64
	Location    string
}

// -----------------------------------------------------------------------------

// generateDay builds one day of raw readings keyed by time of day. Flags are
// computed against the general preset so the store carries consistent data.
func generateDay(cfg generatorConfig, day time.Time, rng *rand.Rand, thresholds models.MThresholdSet) models.MRawDay {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	raw := make(models.MRawDay)
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	for offset := time.Duration(0); offset < 24*time.Hour; offset += cfg.Interval {
		ts := midnight.Add(offset)
		r := baseline(cfg.Node, ts, rng)

		switch {
		case cfg.DipLength > 0 && offset >= cfg.DipStart && offset <= cfg.DipStart+cfg.DipLength:
			r.Voltage = cfg.DipVoltage
		case rng.Float64() < cfg.AnomalyRate:
			perturb(&r, rng)
		}
		r.Power = round(r.Voltage*r.Current*r.PowerFactor, 1)
		r.Location = cfg.Location
		r.IsAnomaly = len(analysis.Violations(r, thresholds)) > 0

		raw[ts.Format("15:04:05")] = storage.EncodeReading(r)
	}
	return raw
}

// -----------------------------------------------------------------------------

// baseline follows a daily load curve peaking in the evening.
func baseline(node string, ts time.Time, rng *rand.Rand) models.MReading {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	load := 0.5 + 0.4*math.Sin((hour-13)/24*2*math.Pi)

	return models.MReading{
		NodeID:      node,
		Timestamp:   ts,
		Voltage:     round(220+rng.NormFloat64()*2, 1),
		Current:     round(2+load*10+rng.NormFloat64()*0.3, 2),
		Frequency:   round(60+rng.NormFloat64()*0.05, 2),
		PowerFactor: round(0.93+rng.Float64()*0.05, 2),
	}
}

// -----------------------------------------------------------------------------

func perturb(r *models.MReading, rng *rand.Rand) {
	switch rng.Intn(4) {
	case 0:
		r.Voltage = round(235+rng.Float64()*10, 1)
	case 1:
		r.Voltage = round(195+rng.Float64()*10, 1)
	case 2:
		r.Frequency = round(60.6+rng.Float64()*0.4, 2)
	default:
		r.PowerFactor = round(0.7+rng.Float64()*0.1, 2)
	}
}

// -----------------------------------------------------------------------------

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
