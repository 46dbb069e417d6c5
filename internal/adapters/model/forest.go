package model

import (
	"fmt"

	"github.com/mikey/ransomware-detector/internal/core"
)

// Tree is a fitted decision tree in array form. Node i is a leaf when
// ChildrenLeft[i] is -1; otherwise samples with x[Feature[i]] <= Threshold[i]
// go left.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// ForestModel averages the leaf class distributions of its trees
type ForestModel struct {
	Metadata
	Trees []Tree `json:"trees"`
}

func (m *ForestModel) validate() error {
	if len(m.Trees) == 0 {
		return fmt.Errorf("forest model has no trees")
	}
	if m.NFeaturesIn <= 0 {
		return fmt.Errorf("forest model must declare n_features_in")
	}
	for i, t := range m.Trees {
		n := len(t.ChildrenLeft)
		if n == 0 || len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
			return fmt.Errorf("tree %d has inconsistent node arrays", i)
		}
		for j := 0; j < n; j++ {
			if t.ChildrenLeft[j] == -1 {
				continue
			}
			if t.ChildrenLeft[j] < 0 || t.ChildrenLeft[j] >= n || t.ChildrenRight[j] < 0 || t.ChildrenRight[j] >= n {
				return fmt.Errorf("tree %d node %d has an out-of-range child", i, j)
			}
			if t.Feature[j] < 0 || t.Feature[j] >= m.NFeaturesIn {
				return fmt.Errorf("tree %d node %d splits on feature %d", i, j, t.Feature[j])
			}
		}
	}
	return nil
}

// NumFeatures returns the persisted input width
func (m *ForestModel) NumFeatures() int {
	return m.NFeaturesIn
}

// PredictProba returns the mean normalized leaf distribution per row
func (m *ForestModel) PredictProba(X [][]float64) ([][]float64, error) {
	nClasses := len(m.classes())
	out := make([][]float64, len(X))

	for i, row := range X {
		if len(row) != m.NFeaturesIn {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d",
				core.ErrDimensionMismatch, i, len(row), m.NFeaturesIn)
		}

		proba := make([]float64, nClasses)
		for _, t := range m.Trees {
			leaf := t.Value[t.leaf(row)]
			var total float64
			for _, v := range leaf {
				total += v
			}
			if total == 0 {
				continue
			}
			for c := 0; c < nClasses && c < len(leaf); c++ {
				proba[c] += leaf[c] / total
			}
		}
		for c := range proba {
			proba[c] /= float64(len(m.Trees))
		}
		out[i] = proba
	}
	return out, nil
}

// Predict returns the most probable class per row
func (m *ForestModel) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba, m.classes()), nil
}

func (t *Tree) leaf(row []float64) int {
	node := 0
	// bounded by node count to survive cyclic exports
	for steps := 0; steps < len(t.ChildrenLeft); steps++ {
		left := t.ChildrenLeft[node]
		if left == -1 {
			return node
		}
		if row[t.Feature[node]] <= t.Threshold[node] {
			node = left
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}
