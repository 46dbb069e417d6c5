package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mikey/ransomware-detector/internal/core"
)

// OpenJSON loads a classifier exported as JSON. The "format" field selects
// the decoder.
func OpenJSON(path string) (core.Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}

	switch md.Format {
	case FormatLogistic:
		var m LogisticModel
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse logistic model: %w", err)
		}
		if err := m.validate(); err != nil {
			return nil, err
		}
		return &m, nil
	case FormatForest:
		var m ForestModel
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse forest model: %w", err)
		}
		if err := m.validate(); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %q", md.Format)
	}
}
