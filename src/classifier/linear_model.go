package classifier

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LinearClass is one row of a multinomial linear model.
type LinearClass struct {
	Label   string    `yaml:"label"`
	Weights []float64 `yaml:"weights"`
	Bias    float64   `yaml:"bias"`
}

// LinearModel scores each class as w·x + b and predicts the argmax.
// Means, when given, are the training feature means used as the explanation baseline.
type LinearModel struct {
	Features []string      `yaml:"features"`
	Classes  []LinearClass `yaml:"classes"`
	Means    []float64     `yaml:"means"`
}

// -----------------------------------------------------------------------------

// LoadLinearModel reads and validates a model file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file '%s': %w", path, err)
	}

	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model from YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model '%s' invalid: %w", path, err)
	}
	return &m, nil
}

// -----------------------------------------------------------------------------

// Validate checks the model against the feature layout and label set.
func (m *LinearModel) Validate() error {
	if len(m.Features) != len(FeatureNames) {
		return fmt.Errorf("expected %d features, got %d", len(FeatureNames), len(m.Features))
	}
	for i, name := range FeatureNames {
		if m.Features[i] != name {
			return fmt.Errorf("feature %d is %q, expected %q", i, m.Features[i], name)
		}
	}
	if len(m.Classes) != len(Labels) {
		return fmt.Errorf("expected %d classes, got %d", len(Labels), len(m.Classes))
	}
	for i, c := range m.Classes {
		if len(c.Weights) != len(m.Features) {
			return fmt.Errorf("class %d has %d weights, expected %d", i, len(c.Weights), len(m.Features))
		}
		if c.Label != "" && c.Label != Labels[i] {
			return fmt.Errorf("class %d is labelled %q, expected %q", i, c.Label, Labels[i])
		}
	}
	if len(m.Means) != 0 && len(m.Means) != len(m.Features) {
		return fmt.Errorf("expected %d feature means, got %d", len(m.Features), len(m.Means))
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *LinearModel) FeatureNames() []string { return m.Features }

// -----------------------------------------------------------------------------

func (m *LinearModel) scores(features []float64) ([]float64, error) {
	if len(features) != len(m.Features) {
		return nil, fmt.Errorf("expected %d features, got %d", len(m.Features), len(features))
	}
	out := make([]float64, len(m.Classes))
	for i, c := range m.Classes {
		s := c.Bias
		for k, w := range c.Weights {
			s += w * features[k]
		}
		out[i] = s
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// Predict returns the highest scoring class; ties resolve to the lowest index.
func (m *LinearModel) Predict(features []float64) (int, error) {
	scores, err := m.scores(features)
	if err != nil {
		return -1, err
	}
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best, nil
}

// -----------------------------------------------------------------------------

// Explain attributes the predicted class score to features:
// contribution_k = w_k * (x_k - mean_k), base = b + w·mean.
// The base plus the contributions equals the class score.
func (m *LinearModel) Explain(features []float64) (int, float64, []float64, error) {
	class, err := m.Predict(features)
	if err != nil {
		return -1, 0, nil, err
	}
	c := m.Classes[class]

	base := c.Bias
	contributions := make([]float64, len(features))
	for k, w := range c.Weights {
		mean := 0.0
		if len(m.Means) > 0 {
			mean = m.Means[k]
		}
		base += w * mean
		contributions[k] = w * (features[k] - mean)
	}
	return class, base, contributions, nil
}
