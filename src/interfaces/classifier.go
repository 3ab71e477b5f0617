package interfaces

// -----------------------------------------------------------------------------
// IAnomalyModel is an opaque, pre-trained scoring function over engineered features.
// -----------------------------------------------------------------------------

type IAnomalyModel interface {

	// FeatureNames returns the expected feature order
	FeatureNames() []string

	// -----------------------------------------------------------------------------

	// Predict returns the class index for one feature vector
	Predict(features []float64) (int, error)

	// -----------------------------------------------------------------------------

	// Explain returns the predicted class, the base value and one contribution per feature
	Explain(features []float64) (class int, base float64, contributions []float64, err error)
}
