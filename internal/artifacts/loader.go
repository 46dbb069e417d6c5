package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mikey/ransomware-detector/internal/core"
	"go.uber.org/zap"
)

// ErrArtifactMissing is returned when the classifier artifact does not exist
var ErrArtifactMissing = errors.New("model artifact missing")

// ModelOpener deserializes a classifier from a persisted artifact
type ModelOpener interface {
	Open(path string) (core.Classifier, error)
}

// ModelOpenerFunc adapts a function to ModelOpener
type ModelOpenerFunc func(path string) (core.Classifier, error)

// Open calls f(path)
func (f ModelOpenerFunc) Open(path string) (core.Classifier, error) {
	return f(path)
}

// Paths locates the persisted artifacts
type Paths struct {
	Model       string
	ScalerMean  string
	ScalerScale string
}

// Loader lazily loads and caches the classifier and optional scaler.
// A failed load is not cached, so the next call retries.
type Loader struct {
	paths  Paths
	opener ModelOpener
	logger *zap.Logger

	mu            sync.Mutex
	model         core.Classifier
	scaler        core.Scaler
	scalerChecked bool
}

// NewLoader creates a new artifact loader
func NewLoader(paths Paths, opener ModelOpener, logger *zap.Logger) *Loader {
	return &Loader{
		paths:  paths,
		opener: opener,
		logger: logger,
	}
}

// Load returns the cached classifier and scaler, loading them on first use.
// The scaler is nil when either parameter file is absent.
func (l *Loader) Load(ctx context.Context) (core.Classifier, core.Scaler, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model == nil {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if _, err := os.Stat(l.paths.Model); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil, fmt.Errorf("%w: %s", ErrArtifactMissing, l.paths.Model)
			}
			return nil, nil, fmt.Errorf("failed to stat model artifact: %w", err)
		}

		model, err := l.opener.Open(l.paths.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load model artifact: %w", err)
		}
		l.model = model
		l.logger.Info("Loaded model artifact",
			zap.String("path", l.paths.Model),
			zap.Int("n_features_in", model.NumFeatures()))
	}

	if !l.scalerChecked {
		scaler, err := l.loadScaler()
		if err != nil {
			return nil, nil, err
		}
		l.scaler = scaler
		l.scalerChecked = true
	}

	return l.model, l.scaler, nil
}

func (l *Loader) loadScaler() (core.Scaler, error) {
	if !fileExists(l.paths.ScalerMean) || !fileExists(l.paths.ScalerScale) {
		l.logger.Info("Scaler parameters not found, features will be used unscaled",
			zap.String("mean_path", l.paths.ScalerMean),
			zap.String("scale_path", l.paths.ScalerScale))
		return nil, nil
	}

	scaler, err := LoadStandardScaler(l.paths.ScalerMean, l.paths.ScalerScale)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loaded scaler parameters", zap.Int("n_features", scaler.NumFeatures()))
	return scaler, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
