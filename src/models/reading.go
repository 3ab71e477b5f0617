package models

import "time"

// -----------------------------------------------------------------------------
// Monitored Parameters
// -----------------------------------------------------------------------------

// Parameter names one of the five monitored electrical quantities.
type Parameter string

const (
	ParamVoltage     Parameter = "voltage"
	ParamCurrent     Parameter = "current"
	ParamPower       Parameter = "power"
	ParamFrequency   Parameter = "frequency"
	ParamPowerFactor Parameter = "power_factor"
)

// MonitoredParameters lists the parameters in declaration order. Every ordered
// output (anomaly_parameters, statistics, series) follows this order.
var MonitoredParameters = []Parameter{
	ParamVoltage,
	ParamCurrent,
	ParamPower,
	ParamFrequency,
	ParamPowerFactor,
}

// ParameterSet is a small bitset over MonitoredParameters.
type ParameterSet uint8

func parameterBit(p Parameter) ParameterSet {
	for i, mp := range MonitoredParameters {
		if mp == p {
			return 1 << uint(i)
		}
	}
	return 0
}

// Add returns the set with p included.
func (s ParameterSet) Add(p Parameter) ParameterSet { return s | parameterBit(p) }

// Has reports whether p is in the set.
func (s ParameterSet) Has(p Parameter) bool {
	bit := parameterBit(p)
	return bit != 0 && s&bit != 0
}

// -----------------------------------------------------------------------------
// Reading
// -----------------------------------------------------------------------------

// MReading is one timestamped electrical measurement for a node.
// Downstream stages decorate copies (see Clone) and never mutate a reading
// that may be shared through the cache.
type MReading struct {
	ID                string      `json:"id"`
	NodeID            string      `json:"node"`
	Timestamp         time.Time   `json:"timestamp"`
	Voltage           float64     `json:"voltage"`
	Current           float64     `json:"current"`
	Power             float64     `json:"power"`
	PowerFactor       float64     `json:"power_factor"`
	Frequency         float64     `json:"frequency"`
	IsAnomaly         bool        `json:"is_anomaly"`
	AnomalyParameters []Parameter `json:"anomaly_parameters"`
	AnomalyType       string      `json:"anomaly_type,omitempty"`
	Location          string      `json:"location,omitempty"`

	// Absent marks parameters that were missing on the wire and defaulted to 0.0
	Absent ParameterSet `json:"-"`
}

// -----------------------------------------------------------------------------

// Value returns the value of a parameter and whether it was present.
func (r MReading) Value(p Parameter) (float64, bool) {
	if r.Absent.Has(p) {
		return 0, false
	}
	switch p {
	case ParamVoltage:
		return r.Voltage, true
	case ParamCurrent:
		return r.Current, true
	case ParamPower:
		return r.Power, true
	case ParamFrequency:
		return r.Frequency, true
	case ParamPowerFactor:
		return r.PowerFactor, true
	}
	return 0, false
}

// -----------------------------------------------------------------------------

// Clone returns a copy that shares no slices with r.
func (r MReading) Clone() MReading {
	out := r
	if r.AnomalyParameters != nil {
		out.AnomalyParameters = append([]Parameter(nil), r.AnomalyParameters...)
	}
	return out
}

// -----------------------------------------------------------------------------

// CloneReadings deep-copies a reading slice.
func CloneReadings(in []MReading) []MReading {
	if in == nil {
		return nil
	}
	out := make([]MReading, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// -----------------------------------------------------------------------------
// Raw wire format
// -----------------------------------------------------------------------------

// MRawDay is one day as returned by the hierarchical store:
// time-of-day ("HH:MM:SS") -> raw field map.
type MRawDay map[string]interface{}
