package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/ransomware-detector/internal/core"
)

func writeModel(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenJSON_Logistic(t *testing.T) {
	t.Parallel()

	path := writeModel(t, `{"format":"logistic","n_features_in":2,"classes":[0,1],"coef":[1.0,-1.0],"intercept":0}`)
	m, err := OpenJSON(path)
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	if m.NumFeatures() != 2 {
		t.Errorf("NumFeatures = %d, want 2", m.NumFeatures())
	}

	proba, err := m.PredictProba([][]float64{{0, 0}, {10, 0}, {0, 10}})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if math.Abs(proba[0][1]-0.5) > 1e-12 {
		t.Errorf("P(1|0,0) = %v, want 0.5", proba[0][1])
	}
	if proba[1][1] < 0.99 || proba[2][1] > 0.01 {
		t.Errorf("unexpected probabilities %v", proba)
	}
	for _, p := range proba {
		if math.Abs(p[0]+p[1]-1) > 1e-12 {
			t.Errorf("row %v does not sum to 1", p)
		}
	}

	labels, err := m.Predict([][]float64{{10, 0}, {0, 10}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if labels[0] != 1 || labels[1] != 0 {
		t.Errorf("labels = %v, want [1 0]", labels)
	}

	if _, err := m.PredictProba([][]float64{{1, 2, 3}}); !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestOpenJSON_Forest(t *testing.T) {
	t.Parallel()

	// one stump splitting on feature 1 at 0.5, one constant tree
	path := writeModel(t, `{
		"format": "forest",
		"n_features_in": 3,
		"classes": [0, 1],
		"trees": [
			{
				"children_left": [1, -1, -1],
				"children_right": [2, -1, -1],
				"feature": [1, -2, -2],
				"threshold": [0.5, -2, -2],
				"value": [[5, 5], [9, 1], [0, 4]]
			},
			{
				"children_left": [-1],
				"children_right": [-1],
				"feature": [-2],
				"threshold": [-2],
				"value": [[1, 1]]
			}
		]
	}`)
	m, err := OpenJSON(path)
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}

	proba, err := m.PredictProba([][]float64{{0, 0, 0}, {0, 1, 0}})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}

	tests := []struct {
		row  int
		want float64
	}{
		{0, (0.1 + 0.5) / 2},
		{1, (1.0 + 0.5) / 2},
	}
	for _, tt := range tests {
		if math.Abs(proba[tt.row][1]-tt.want) > 1e-12 {
			t.Errorf("row %d: P(1) = %v, want %v", tt.row, proba[tt.row][1], tt.want)
		}
	}

	labels, _ := m.Predict([][]float64{{0, 0, 0}, {0, 1, 0}})
	if labels[0] != 0 || labels[1] != 1 {
		t.Errorf("labels = %v, want [0 1]", labels)
	}
}

func TestOpenJSON_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"unknown format", `{"format":"svm"}`},
		{"empty logistic", `{"format":"logistic","coef":[]}`},
		{"width mismatch", `{"format":"logistic","n_features_in":3,"coef":[1,2]}`},
		{"forest without width", `{"format":"forest","trees":[{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[-2],"value":[[1,1]]}]}`},
		{"forest bad feature", `{"format":"forest","n_features_in":1,"trees":[{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[4,-2,-2],"threshold":[0,0,0],"value":[[1,1],[1,0],[0,1]]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenJSON(writeModel(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenJSON_DefaultWidth(t *testing.T) {
	m, err := OpenJSON(writeModel(t, `{"format":"logistic","coef":[1,2,3,4]}`))
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	if m.NumFeatures() != 4 {
		t.Errorf("NumFeatures = %d, want 4", m.NumFeatures())
	}
}
