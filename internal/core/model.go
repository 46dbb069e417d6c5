package core

import (
	"time"
)

// Verdict labels produced by the classifier
const (
	LabelRansomware = "Ransomware"
	LabelBenign     = "Benign"
)

// Result sources
const (
	SourceModel     = "model"
	SourceCache     = "cache"
	SourceAllowlist = "allowlist"
)

// Diagnostics records which default-substitution paths were taken while
// producing a prediction. Every field is deterministic for a given input.
type Diagnostics struct {
	StructuralStatus string `json:"structural_status"`
	Reconciliation   string `json:"reconciliation"`
	Scaling          string `json:"scaling"`
}

// PredictionResult represents the result of classifying a single sample
type PredictionResult struct {
	Filename    string      `json:"filename"`
	SHA256      string      `json:"sha256"`
	Probability float64     `json:"prob"`
	Label       string      `json:"label"`
	Features    []float64   `json:"features"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// FeatureContribution is one ranked entry of a local explanation
type FeatureContribution struct {
	Feature string  `json:"feature"`
	Name    string  `json:"name"`
	Impact  float64 `json:"impact"`
	Meaning string  `json:"meaning"`
}

// ExplanationResult holds the rendered explanation of a prediction
type ExplanationResult struct {
	ImagePath   string                `json:"lime_image"`
	TopFeatures []FeatureContribution `json:"top_features"`

	// Surrogate fit diagnostics
	Intercept       float64 `json:"intercept"`
	Score           float64 `json:"score"`
	LocalPrediction float64 `json:"local_prediction"`
}

// AnalysisRequest describes a sample to analyze
type AnalysisRequest struct {
	Path string
	// DisplayName overrides the reported filename (e.g. the original
	// attachment or upload name when Path is a temporary file).
	DisplayName string
	Explain     bool
}

// AnalysisReport is the unit returned to frontends
type AnalysisReport struct {
	AnalysisID       string             `json:"analysis_id"`
	Filename         string             `json:"filename"`
	SHA256           string             `json:"sha256"`
	MimeType         string             `json:"mime_type,omitempty"`
	Label            string             `json:"label"`
	Probability      float64            `json:"prob"`
	IsRansomware     bool               `json:"is_ransomware"`
	Source           string             `json:"source"`
	Prediction       *PredictionResult  `json:"-"`
	Explanation      *ExplanationResult `json:"explanation,omitempty"`
	ExplanationError string             `json:"explanation_error,omitempty"`
	Narrative        string             `json:"narrative,omitempty"`
	AnalyzedAt       time.Time          `json:"analyzed_at"`
	Duration         time.Duration      `json:"duration"`
}

// CacheEntry is a stored verdict keyed by content digest
type CacheEntry struct {
	SHA256      string
	Filename    string
	Label       string
	Probability float64
	Features    []float64
	LastSeen    time.Time
	ExpiresAt   time.Time
}
