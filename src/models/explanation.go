package models

type MFeatureContribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// MExplanation is the per-feature attribution for one classified reading.
type MExplanation struct {
	ReadingID      string                 `json:"reading_id"`
	PredictedClass string                 `json:"predicted_class"`
	BaseValue      float64                `json:"base_value"`
	Contributions  []MFeatureContribution `json:"contributions"`
}
