package analysis

import (
	"time"

	"power-observer/src/models"
)

var base = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

// reading builds a nominal reading at base+offset with the given voltage.
func reading(offset time.Duration, voltage float64) models.MReading {
	return models.MReading{
		NodeID:      "C-1",
		Timestamp:   base.Add(offset),
		Voltage:     voltage,
		Current:     2.5,
		Power:       575,
		Frequency:   60,
		PowerFactor: 0.95,
	}
}

func anomalous(r models.MReading) models.MReading {
	r.IsAnomaly = true
	r.AnomalyParameters = []models.Parameter{models.ParamVoltage}
	return r
}
