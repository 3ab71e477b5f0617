package analysis

import (
	"sort"

	"power-observer/src/helpers"
	"power-observer/src/models"
)

// Built-in threshold presets. Callers choose one explicitly.
const (
	PresetGeneral   = "general"
	PresetDashboard = "dashboard"
)

var builtinPresets = map[string]models.MThresholdSet{
	PresetGeneral: {
		Voltage:     models.MThresholdBand{Min: 210, Max: 230},
		Current:     models.MThresholdBand{Min: 0, Max: 30},
		Power:       models.MThresholdBand{Min: 0, Max: 5000},
		Frequency:   models.MThresholdBand{Min: 59.5, Max: 60.5},
		PowerFactor: models.MThresholdBand{Min: 0.85, Max: 1.0},
	},
	PresetDashboard: {
		Voltage:     models.MThresholdBand{Min: 217.4, Max: 242.6},
		Current:     models.MThresholdBand{Min: 0, Max: 50},
		Power:       models.MThresholdBand{Min: 0, Max: 10000},
		Frequency:   models.MThresholdBand{Min: 59.2, Max: 60.8},
		PowerFactor: models.MThresholdBand{Min: 0.792, Max: 1.0},
	},
}

// -----------------------------------------------------------------------------

// ThresholdAnomalyDetector flags readings whose parameters leave a band.
type ThresholdAnomalyDetector struct {
	presets map[string]models.MThresholdSet
}

// -----------------------------------------------------------------------------

// NewThresholdAnomalyDetector starts from the built-in presets; entries in
// overrides replace or add presets by name.
func NewThresholdAnomalyDetector(overrides map[string]models.MThresholdSet) *ThresholdAnomalyDetector {
	presets := make(map[string]models.MThresholdSet, len(builtinPresets)+len(overrides))
	for name, set := range builtinPresets {
		presets[name] = set
	}
	for name, set := range overrides {
		if set.IsZero() {
			continue
		}
		presets[name] = set
	}
	return &ThresholdAnomalyDetector{presets: presets}
}

// -----------------------------------------------------------------------------

// Preset returns the named threshold set. Unknown names are client errors.
func (d *ThresholdAnomalyDetector) Preset(name string) (models.MThresholdSet, error) {
	set, ok := d.presets[name]
	if !ok {
		return models.MThresholdSet{}, helpers.NewClientInputError("unknown threshold preset %q (available: %v)", name, d.PresetNames())
	}
	return set, nil
}

// -----------------------------------------------------------------------------

// Presets returns a copy of every configured preset.
func (d *ThresholdAnomalyDetector) Presets() map[string]models.MThresholdSet {
	out := make(map[string]models.MThresholdSet, len(d.presets))
	for name, set := range d.presets {
		out[name] = set
	}
	return out
}

// PresetNames lists preset names, sorted.
func (d *ThresholdAnomalyDetector) PresetNames() []string {
	names := make([]string, 0, len(d.presets))
	for name := range d.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------

// Evaluate returns flagged copies of readings. The flag and the triggering
// parameters are recomputed from the values alone, so evaluating an already
// evaluated slice gives the same answer. The input is not modified.
func (d *ThresholdAnomalyDetector) Evaluate(readings []models.MReading, thresholds models.MThresholdSet) []models.MReading {
	out := make([]models.MReading, len(readings))
	for i, r := range readings {
		c := r.Clone()
		c.AnomalyParameters = Violations(r, thresholds)
		c.IsAnomaly = len(c.AnomalyParameters) > 0
		out[i] = c
	}
	return out
}

// -----------------------------------------------------------------------------

// Violations lists the parameters of r outside their band, in declaration
// order. Parameters missing on the reading are not checked.
func Violations(r models.MReading, thresholds models.MThresholdSet) []models.Parameter {
	params := []models.Parameter{}
	for _, p := range models.MonitoredParameters {
		v, ok := r.Value(p)
		if !ok {
			continue
		}
		band := thresholds.Band(p)
		if v < band.Min || v > band.Max {
			params = append(params, p)
		}
	}
	return params
}
