package classifier

import (
	"power-observer/src/helpers"
	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/models"
)

// AnomalyClassifier labels anomalous readings with a pre-trained model.
// The model is loaded once at startup and shared by every request.
type AnomalyClassifier struct {
	Model  interfaces.IAnomalyModel
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAnomalyClassifier(model interfaces.IAnomalyModel, log *logger.Logger) *AnomalyClassifier {
	return &AnomalyClassifier{Model: model, Logger: log}
}

// -----------------------------------------------------------------------------

// Enabled reports whether a model is loaded.
func (c *AnomalyClassifier) Enabled() bool {
	return c != nil && c.Model != nil
}

// -----------------------------------------------------------------------------

// Classify returns "Normal" for non-anomalous readings without consulting the
// model, and "Unknown" when the features cannot be built or the model fails.
func (c *AnomalyClassifier) Classify(r models.MReading) string {
	if !r.IsAnomaly {
		return LabelNormal
	}
	if !c.Enabled() {
		return LabelUnknown
	}

	features, err := PrepareFeatures(r)
	if err != nil {
		c.Logger.Warning("Classification skipped: %v", err)
		return LabelUnknown
	}
	class, err := c.Model.Predict(features)
	if err != nil {
		c.Logger.Error("Error classifying reading %s: %v", r.ID, err)
		return LabelUnknown
	}
	return LabelFor(class)
}

// -----------------------------------------------------------------------------

// ClassifyBatch returns copies of the anomalous readings with AnomalyType set.
func (c *AnomalyClassifier) ClassifyBatch(readings []models.MReading) []models.MReading {
	out := make([]models.MReading, 0)
	for _, r := range readings {
		if !r.IsAnomaly {
			continue
		}
		cp := r.Clone()
		cp.AnomalyType = c.Classify(r)
		out = append(out, cp)
	}
	c.Logger.Debug("Classification complete. Found %d anomalies in %d readings.", len(out), len(readings))
	return out
}

// -----------------------------------------------------------------------------

// Explain attributes the predicted class of r to its features.
func (c *AnomalyClassifier) Explain(r models.MReading) (*models.MExplanation, error) {
	if !c.Enabled() {
		return nil, helpers.NewClassificationError("no classifier model loaded", nil)
	}
	features, err := PrepareFeatures(r)
	if err != nil {
		return nil, helpers.NewClassificationError("cannot build features", err)
	}
	class, base, contributions, err := c.Model.Explain(features)
	if err != nil {
		return nil, helpers.NewClassificationError("model explanation failed", err)
	}

	names := c.Model.FeatureNames()
	exp := &models.MExplanation{
		ReadingID:      r.ID,
		PredictedClass: LabelFor(class),
		BaseValue:      base,
		Contributions:  make([]models.MFeatureContribution, len(features)),
	}
	for k := range features {
		name := ""
		if k < len(names) {
			name = names[k]
		}
		exp.Contributions[k] = models.MFeatureContribution{
			Feature:      name,
			Value:        features[k],
			Contribution: contributions[k],
		}
	}
	return exp, nil
}
