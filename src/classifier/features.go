package classifier

import (
	"fmt"

	"power-observer/src/models"
)

// FeatureNames is the model input order.
var FeatureNames = []string{
	"voltage",
	"current",
	"frequency",
	"power",
	"powerFactor",
	"voltage_deviation",
	"frequency_deviation",
	"pf_deviation",
	"power_voltage_ratio",
	"current_voltage_ratio",
}

const (
	nominalVoltage   = 230.0
	nominalFrequency = 60.0
	ratioEpsilon     = 0.1
)

// -----------------------------------------------------------------------------

// PrepareFeatures builds the feature vector of r. Every monitored parameter
// must be present.
func PrepareFeatures(r models.MReading) ([]float64, error) {
	for _, p := range models.MonitoredParameters {
		if _, ok := r.Value(p); !ok {
			return nil, fmt.Errorf("reading %s is missing %s", r.ID, p)
		}
	}

	return []float64{
		r.Voltage,
		r.Current,
		r.Frequency,
		r.Power,
		r.PowerFactor,
		(r.Voltage - nominalVoltage) / nominalVoltage,
		(r.Frequency - nominalFrequency) / nominalFrequency,
		r.PowerFactor - 1.0,
		r.Power / (r.Voltage + ratioEpsilon),
		r.Current / (r.Voltage + ratioEpsilon),
	}, nil
}
