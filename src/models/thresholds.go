package models

// MThresholdBand is an inclusive acceptable range for one parameter.
type MThresholdBand struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// MThresholdSet holds one band per monitored parameter.
type MThresholdSet struct {
	Voltage     MThresholdBand `json:"voltage" yaml:"voltage"`
	Current     MThresholdBand `json:"current" yaml:"current"`
	Power       MThresholdBand `json:"power" yaml:"power"`
	Frequency   MThresholdBand `json:"frequency" yaml:"frequency"`
	PowerFactor MThresholdBand `json:"power_factor" yaml:"power_factor"`
}

// -----------------------------------------------------------------------------

// Band returns the band configured for p.
func (t MThresholdSet) Band(p Parameter) MThresholdBand {
	switch p {
	case ParamVoltage:
		return t.Voltage
	case ParamCurrent:
		return t.Current
	case ParamPower:
		return t.Power
	case ParamFrequency:
		return t.Frequency
	case ParamPowerFactor:
		return t.PowerFactor
	}
	return MThresholdBand{}
}

// -----------------------------------------------------------------------------

// IsZero reports whether no band has been configured.
func (t MThresholdSet) IsZero() bool {
	return t == MThresholdSet{}
}

// -----------------------------------------------------------------------------
// Request filters
// -----------------------------------------------------------------------------

// MRange is an inclusive numeric filter; nil bounds are open.
type MRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// MReadingFilter is the server-side filter applied after decoding.
type MReadingFilter struct {
	Ranges      map[Parameter]MRange `json:"ranges,omitempty"`
	AnomalyOnly bool                 `json:"anomaly_only"`
}
