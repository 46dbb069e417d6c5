package features

import (
	"fmt"

	"go.uber.org/zap"
)

// FeatureSet is the result of extracting all features from a sample
type FeatureSet struct {
	Entropy    *EntropyStats
	Structural StructuralFeatures
	Merged     map[string]float64
	Vector     []float32
}

// Merge combines byte-level and structural features into one mapping
func Merge(entropy *EntropyStats, structural StructuralFeatures) map[string]float64 {
	merged := make(map[string]float64, 11)
	if entropy != nil {
		for k, v := range entropy.Map() {
			merged[k] = v
		}
	}
	for k, v := range structural.Map() {
		merged[k] = v
	}
	return merged
}

// Extractor runs the feature pipeline for a sample
type Extractor struct {
	schema     *Schema
	structural *StructuralExtractor
	logger     *zap.Logger
}

// NewExtractor creates a new feature extractor
func NewExtractor(schema *Schema, structural *StructuralExtractor, logger *zap.Logger) *Extractor {
	if structural == nil {
		structural = NewStructuralExtractor()
	}
	return &Extractor{
		schema:     schema,
		structural: structural,
		logger:     logger,
	}
}

// Schema returns the schema vectors are aligned to
func (e *Extractor) Schema() *Schema {
	return e.schema
}

// Extract computes the aligned feature vector for the file at path
func (e *Extractor) Extract(path string) (*FeatureSet, error) {
	entropy, err := AnalyzeEntropy(path)
	if err != nil {
		return nil, fmt.Errorf("entropy analysis failed: %w", err)
	}

	structural := e.structural.Extract(path)
	if structural.Status != ParseOK {
		e.logger.Debug("Structural features defaulted to zero",
			zap.String("path", path),
			zap.Stringer("status", structural.Status),
			zap.Error(structural.Err))
	}

	merged := Merge(entropy, structural)

	return &FeatureSet{
		Entropy:    entropy,
		Structural: structural,
		Merged:     merged,
		Vector:     e.schema.Assemble(merged),
	}, nil
}
