package explainer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/features"
)

// Image naming policies
const (
	NamingFilename = "filename"
	NamingHash     = "hash"
)

// Service explains predictions with the cached artifacts
type Service struct {
	explainer *Explainer
	artifacts core.ArtifactProvider
	schema    *features.Schema
	outputDir string
	naming    string
}

// NewService creates a new explanation service
func NewService(explainer *Explainer, artifacts core.ArtifactProvider, schema *features.Schema, outputDir, naming string) *Service {
	return &Service{
		explainer: explainer,
		artifacts: artifacts,
		schema:    schema,
		outputDir: outputDir,
		naming:    naming,
	}
}

// ExplainPrediction explains prediction and writes its image under the
// output directory
func (s *Service) ExplainPrediction(ctx context.Context, prediction *core.PredictionResult) (*core.ExplanationResult, error) {
	model, scaler, err := s.artifacts.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := ImagePath(s.outputDir, s.naming, prediction)
	return s.explainer.Explain(model, scaler, prediction.Features, s.schema.Names(), path)
}

// ImagePath names the explanation image of a prediction. The filename
// policy reuses the sample's base name and falls back to the digest.
func ImagePath(dir, naming string, prediction *core.PredictionResult) string {
	name := prediction.SHA256
	if naming != NamingHash {
		base := filepath.Base(prediction.Filename)
		if base != "." && base != string(filepath.Separator) && strings.TrimSpace(base) != "" {
			name = base
		}
	}
	return filepath.Join(dir, "lime_"+name+".png")
}
