package core

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned by scalers and classifiers when the width
// of the input matrix disagrees with the width they were fitted on.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// Classifier is a pretrained binary classifier over numeric rows
type Classifier interface {
	// PredictProba returns one probability row per input row
	PredictProba(X [][]float64) ([][]float64, error)

	// Predict returns one class label per input row
	Predict(X [][]float64) ([]int, error)

	// NumFeatures returns the persisted expected input width, or 0 if unknown
	NumFeatures() int
}

// Scaler normalizes numeric rows
type Scaler interface {
	Transform(X [][]float64) ([][]float64, error)
	NumFeatures() int
}

// ArtifactProvider hands out the cached classifier and optional scaler
type ArtifactProvider interface {
	Load(ctx context.Context) (Classifier, Scaler, error)
}

// Predictor classifies a file on disk
type Predictor interface {
	Predict(ctx context.Context, path string) (*PredictionResult, error)
}

// Explainer attributes a prediction to its features and renders the result
type Explainer interface {
	ExplainPrediction(ctx context.Context, prediction *PredictionResult) (*ExplanationResult, error)
}

// Narrator turns a report into a short plain-language paragraph
type Narrator interface {
	Narrate(ctx context.Context, report *AnalysisReport) (string, error)
}

// Allowlist reports whether a content digest is known to be benign
type Allowlist interface {
	IsAllowlisted(sha256 string) bool
}

// CacheRepository defines the interface for caching analysis verdicts
type CacheRepository interface {
	// Get retrieves a cached entry for a content digest
	Get(ctx context.Context, sha256 string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, sha256 string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
