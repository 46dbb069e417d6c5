package factory

import (
	"fmt"

	"github.com/mikey/ransomware-detector/internal/adapters/model"
	"github.com/mikey/ransomware-detector/internal/artifacts"
	"github.com/mikey/ransomware-detector/internal/config"
	"github.com/mikey/ransomware-detector/internal/explainer"
	"github.com/mikey/ransomware-detector/internal/features"
	"github.com/mikey/ransomware-detector/internal/predictor"
	"github.com/mikey/ransomware-detector/internal/whitelist"
	"go.uber.org/zap"
)

// DetectorFactory builds the prediction pipeline from configuration
type DetectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDetectorFactory creates a new detector factory
func NewDetectorFactory(cfg *config.Config, logger *zap.Logger) *DetectorFactory {
	return &DetectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSchema loads the feature schema from the training CSV header
func (f *DetectorFactory) CreateSchema() (*features.Schema, error) {
	path := f.cfg.GetArtifacts().FeaturesCSV
	schema, err := features.LoadSchema(path)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Loaded feature schema", zap.String("path", path), zap.Int("columns", schema.Len()))
	return schema, nil
}

// CreateModelOpener selects the classifier adapter for the configured format
func (f *DetectorFactory) CreateModelOpener() (artifacts.ModelOpener, error) {
	a := f.cfg.GetArtifacts()

	switch a.ModelFormat {
	case "json", "":
		return artifacts.ModelOpenerFunc(model.OpenJSON), nil
	case "onnx":
		return model.ONNXOpener{Config: model.ONNXConfig{
			SharedLibraryPath: a.ONNXLibraryPath,
			MetadataPath:      a.MetadataPath,
			NumThreads:        a.ONNXThreads,
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %s", a.ModelFormat)
	}
}

// CreateArtifactLoader creates the shared, lazily populated artifact cache
func (f *DetectorFactory) CreateArtifactLoader() (*artifacts.Loader, error) {
	opener, err := f.CreateModelOpener()
	if err != nil {
		return nil, err
	}

	a := f.cfg.GetArtifacts()
	return artifacts.NewLoader(artifacts.Paths{
		Model:       a.ModelPath,
		ScalerMean:  a.ScalerMeanPath,
		ScalerScale: a.ScalerScalePath,
	}, opener, f.logger), nil
}

// CreatePredictor wires feature extraction to the artifact loader
func (f *DetectorFactory) CreatePredictor(schema *features.Schema, loader *artifacts.Loader) *predictor.Predictor {
	extractor := features.NewExtractor(schema, nil, f.logger)
	return predictor.New(extractor, loader, f.logger)
}

// CreateExplainer returns nil when explanations are disabled
func (f *DetectorFactory) CreateExplainer(schema *features.Schema, loader *artifacts.Loader) *explainer.Service {
	e := f.cfg.GetExplain()
	if !e.Enabled {
		return nil
	}

	switch e.ImageNaming {
	case explainer.NamingFilename, explainer.NamingHash:
	default:
		f.logger.Warn("Unknown image naming policy, using filename", zap.String("naming", e.ImageNaming))
		e.ImageNaming = explainer.NamingFilename
	}

	ex := explainer.New(explainer.Config{
		NumSamples:  e.NumSamples,
		NumFeatures: e.NumFeatures,
		TopK:        e.TopK,
		Seed:        e.Seed,
		Background:  e.Background,
	}, f.logger)
	return explainer.NewService(ex, loader, schema, e.OutputDir, e.ImageNaming)
}

// CreateAllowlist builds the known-good hash allowlist
func (f *DetectorFactory) CreateAllowlist() (*whitelist.Checker, error) {
	d := f.cfg.GetDetection()
	checker := whitelist.NewChecker(d.AllowlistedHashes, f.logger)
	if d.AllowlistFile != "" {
		if err := checker.LoadFile(d.AllowlistFile); err != nil {
			return nil, err
		}
	}
	return checker, nil
}
