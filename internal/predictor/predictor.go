package predictor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/features"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

// Reconciliation tags how a vector was resized to the scaler's width
type Reconciliation int

const (
	ReconcileNone Reconciliation = iota
	ReconcileTruncated
	ReconcilePadded
)

func (r Reconciliation) String() string {
	switch r {
	case ReconcileNone:
		return "none"
	case ReconcileTruncated:
		return "truncated"
	case ReconcilePadded:
		return "padded"
	default:
		return fmt.Sprintf("Reconciliation(%d)", int(r))
	}
}

// ScalingStatus tags whether a scaler was applied
type ScalingStatus int

const (
	ScalingApplied ScalingStatus = iota
	ScalingSkipped
)

func (s ScalingStatus) String() string {
	if s == ScalingApplied {
		return "applied"
	}
	return "skipped"
}

// Reconcile truncates or right-pads vec with zeros to width. A vector that
// already has the right width is returned unchanged.
func Reconcile(vec []float64, width int) ([]float64, Reconciliation) {
	switch {
	case len(vec) == width:
		return vec, ReconcileNone
	case len(vec) > width:
		out := make([]float64, width)
		copy(out, vec)
		return out, ReconcileTruncated
	default:
		out := make([]float64, width)
		copy(out, vec)
		return out, ReconcilePadded
	}
}

// Scale applies scaler to vec. On a dimension mismatch the vector is
// reconciled to the scaler's width and scaling is retried once.
func Scale(scaler core.Scaler, vec []float64) ([]float64, Reconciliation, ScalingStatus, error) {
	if scaler == nil {
		return vec, ReconcileNone, ScalingSkipped, nil
	}

	out, err := scaler.Transform([][]float64{vec})
	if err == nil {
		return out[0], ReconcileNone, ScalingApplied, nil
	}
	if !errors.Is(err, core.ErrDimensionMismatch) {
		return nil, ReconcileNone, ScalingApplied, fmt.Errorf("failed to scale features: %w", err)
	}

	reconciled, rec := Reconcile(vec, scaler.NumFeatures())
	out, err = scaler.Transform([][]float64{reconciled})
	if err != nil {
		return nil, rec, ScalingApplied, fmt.Errorf("failed to scale reconciled features: %w", err)
	}
	return out[0], rec, ScalingApplied, nil
}

// PositiveProbability returns P(class 1) for binary output, otherwise the
// first (sole) class probability.
func PositiveProbability(proba []float64) float64 {
	if len(proba) >= 2 {
		return proba[1]
	}
	if len(proba) == 1 {
		return proba[0]
	}
	return 0
}

// Predictor classifies samples
type Predictor struct {
	extractor *features.Extractor
	artifacts core.ArtifactProvider
	logger    *zap.Logger
	hashChunk int
}

// New creates a new predictor
func New(extractor *features.Extractor, artifacts core.ArtifactProvider, logger *zap.Logger) *Predictor {
	return &Predictor{
		extractor: extractor,
		artifacts: artifacts,
		logger:    logger,
		hashChunk: utils.DefaultHashChunkSize,
	}
}

// Predict extracts features from the file at path and classifies it
func (p *Predictor) Predict(ctx context.Context, path string) (*core.PredictionResult, error) {
	fs, err := p.extractor.Extract(path)
	if err != nil {
		return nil, err
	}

	model, scaler, err := p.artifacts.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, len(fs.Vector))
	for i, v := range fs.Vector {
		vec[i] = float64(v)
	}

	scaled, rec, scaling, err := Scale(scaler, vec)
	if err != nil {
		return nil, err
	}
	if rec != ReconcileNone {
		p.logger.Warn("Feature vector reconciled to scaler width",
			zap.String("path", path),
			zap.Int("schema_width", len(vec)),
			zap.Int("scaler_width", len(scaled)),
			zap.Stringer("reconciliation", rec))
	}

	X := [][]float64{scaled}
	proba, err := model.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("model probability prediction failed: %w", err)
	}
	labels, err := model.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("model label prediction failed: %w", err)
	}
	if len(proba) == 0 || len(labels) == 0 {
		return nil, errors.New("model returned no prediction")
	}

	digest, err := utils.HashFile(path, p.hashChunk)
	if err != nil {
		return nil, err
	}

	label := core.LabelBenign
	if labels[0] == 1 {
		label = core.LabelRansomware
	}

	result := &core.PredictionResult{
		Filename:    filepath.Base(path),
		SHA256:      digest,
		Probability: PositiveProbability(proba[0]),
		Label:       label,
		Features:    scaled,
		Diagnostics: core.Diagnostics{
			StructuralStatus: fs.Structural.Status.String(),
			Reconciliation:   rec.String(),
			Scaling:          scaling.String(),
		},
	}

	p.logger.Debug("Sample classified",
		zap.String("filename", result.Filename),
		zap.String("sha256", result.SHA256),
		zap.String("label", result.Label),
		zap.Float64("prob", result.Probability))

	return result, nil
}
