package model

import (
	"fmt"
	"math"

	"github.com/mikey/ransomware-detector/internal/core"
)

// LogisticModel is a binary logistic regression
type LogisticModel struct {
	Metadata
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *LogisticModel) validate() error {
	if len(m.Coef) == 0 {
		return fmt.Errorf("logistic model has no coefficients")
	}
	if m.NFeaturesIn == 0 {
		m.NFeaturesIn = len(m.Coef)
	}
	if m.NFeaturesIn != len(m.Coef) {
		return fmt.Errorf("logistic model declares %d features but has %d coefficients", m.NFeaturesIn, len(m.Coef))
	}
	return nil
}

// NumFeatures returns the persisted input width
func (m *LogisticModel) NumFeatures() int {
	return m.NFeaturesIn
}

// PredictProba returns [P(class 0), P(class 1)] per row
func (m *LogisticModel) PredictProba(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Coef) {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d",
				core.ErrDimensionMismatch, i, len(row), len(m.Coef))
		}
		z := m.Intercept
		for j, v := range row {
			z += m.Coef[j] * v
		}
		p := 1.0 / (1.0 + math.Exp(-z))
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

// Predict returns the most probable class per row
func (m *LogisticModel) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba, m.classes()), nil
}
