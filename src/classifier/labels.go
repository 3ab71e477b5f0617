package classifier

const (
	LabelNormal  = "Normal"
	LabelUnknown = "Unknown"
)

// Labels maps model class indices to anomaly types.
var Labels = []string{
	"LightLoad_VoltageSurge",
	"Idle_Overvoltage",
	"LightLoad_Undervoltage",
	"HighLoad_VoltageInstability",
	"HighLoad_SevereTransients",
	"Idle_Undervoltage",
	"LowPF_ReactiveLoad",
	"ModeratePF_MinorSurge",
	"HighLoad_MixedAnomalies",
	"LightLoad_Undervoltage_LowPF",
	"LightLoad_MinorSurge",
	"HighLoad_Optimal",
	"Idle_Stable",
	"HighLoad_Excellent",
	"PeakLoad_Excellent",
}

// LabelFor returns the label of a class index, LabelUnknown when out of range.
func LabelFor(class int) string {
	if class < 0 || class >= len(Labels) {
		return LabelUnknown
	}
	return Labels[class]
}
