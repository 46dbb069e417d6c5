package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Supported serialized model formats
const (
	FormatLogistic = "logistic"
	FormatForest   = "forest"
)

// Metadata is stored alongside every model artifact. NFeaturesIn is the
// input width the model was fitted on.
type Metadata struct {
	Format       string   `json:"format"`
	NFeaturesIn  int      `json:"n_features_in"`
	Classes      []int    `json:"classes"`
	FeatureNames []string `json:"feature_names,omitempty"`

	// ONNX graph bindings
	InputName  string `json:"input_name,omitempty"`
	OutputName string `json:"output_name,omitempty"`
}

func (m *Metadata) classes() []int {
	if len(m.Classes) == 0 {
		return []int{0, 1}
	}
	return m.Classes
}

// ReadMetadata reads a JSON metadata document
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse model metadata: %w", err)
	}
	return &md, nil
}

// argmax returns the index of the largest value
func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// predictFromProba maps probability rows to class labels
func predictFromProba(proba [][]float64, classes []int) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		idx := argmax(p)
		if idx < len(classes) {
			out[i] = classes[idx]
		} else {
			out[i] = idx
		}
	}
	return out
}
