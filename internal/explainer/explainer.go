package explainer

import (
	"fmt"
	"math"
	"sort"

	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/predictor"
	"go.uber.org/zap"
)

// Config controls the local surrogate
type Config struct {
	NumSamples  int
	NumFeatures int
	TopK        int
	Seed        uint64
	Background  string
}

// DefaultConfig returns the default explainer settings
func DefaultConfig() Config {
	return Config{
		NumSamples:  5000,
		NumFeatures: 10,
		TopK:        5,
		Seed:        42,
		Background:  BackgroundZeros,
	}
}

// Explainer produces local explanations of single predictions
type Explainer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a new explainer
func New(cfg Config, logger *zap.Logger) *Explainer {
	def := DefaultConfig()
	if cfg.NumSamples <= 0 {
		cfg.NumSamples = def.NumSamples
	}
	if cfg.NumFeatures <= 0 {
		cfg.NumFeatures = def.NumFeatures
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Background == "" {
		cfg.Background = def.Background
	}
	return &Explainer{cfg: cfg, logger: logger}
}

// Explain attributes the prediction for row (already scaled) to its
// features, renders a bar chart to imagePath and returns the top entries.
func (e *Explainer) Explain(model core.Classifier, scaler core.Scaler, row []float64, names []string, imagePath string) (*core.ExplanationResult, error) {
	width := model.NumFeatures()
	if width <= 0 || width > len(row) {
		width = len(row)
	}
	if width == 0 {
		return nil, ErrNoFeatures
	}

	instance := append([]float64(nil), row[:width]...)
	labels := alignNames(names, width)

	predict := func(X [][]float64) ([]float64, error) {
		X, err := rescale(scaler, X, width)
		if err != nil {
			return nil, err
		}
		proba, err := model.PredictProba(X)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(proba))
		for i, p := range proba {
			out[i] = predictor.PositiveProbability(p)
		}
		return out, nil
	}

	fit, err := fitSurrogate(instance, labels, predict, e.cfg)
	if err != nil {
		return nil, err
	}

	if err := renderBarChart(imagePath, "Local explanation for class "+core.LabelRansomware, fit.Contributions); err != nil {
		return nil, err
	}

	top := TopContributions(fit.Contributions, e.cfg.TopK)
	result := &core.ExplanationResult{
		ImagePath:       imagePath,
		TopFeatures:     make([]core.FeatureContribution, 0, len(top)),
		Intercept:       fit.Intercept,
		Score:           fit.Score,
		LocalPrediction: fit.LocalPrediction,
	}
	for _, c := range top {
		result.TopFeatures = append(result.TopFeatures, core.FeatureContribution{
			Feature: c.Condition,
			Name:    c.Name,
			Impact:  c.Weight,
			Meaning: Meaning(c.Name),
		})
	}

	e.logger.Debug("Explanation rendered",
		zap.String("image", imagePath),
		zap.Int("conditions", len(fit.Contributions)),
		zap.Float64("score", fit.Score))

	return result, nil
}

// rescale applies scaler to rows of the model width. Rows are zero-padded
// or cut to the scaler width for the transform, then cut back to width;
// columns beyond a narrower scaler keep their values.
func rescale(scaler core.Scaler, X [][]float64, width int) ([][]float64, error) {
	if scaler == nil {
		return X, nil
	}

	sw := scaler.NumFeatures()
	in := make([][]float64, len(X))
	for i, row := range X {
		in[i] = make([]float64, sw)
		copy(in[i], row)
	}
	scaled, err := scaler.Transform(in)
	if err != nil {
		return nil, fmt.Errorf("failed to scale perturbed samples: %w", err)
	}

	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = make([]float64, width)
		copy(out[i], row)
		copy(out[i], scaled[i][:min(sw, width)])
	}
	return out, nil
}

// TopContributions returns at most k entries ordered by descending absolute
// weight. Ties keep their input order.
func TopContributions(contribs []Contribution, k int) []Contribution {
	out := append([]Contribution(nil), contribs...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Weight) > math.Abs(out[j].Weight)
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func alignNames(names []string, width int) []string {
	out := make([]string, width)
	for i := range out {
		if i < len(names) {
			out[i] = names[i]
		} else {
			out[i] = fmt.Sprintf("feature_%d", i)
		}
	}
	return out
}
