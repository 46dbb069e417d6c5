package di

import (
	"context"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ransomware-detector/internal/artifacts"
	"github.com/mikey/ransomware-detector/internal/config"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/explainer"
	"github.com/mikey/ransomware-detector/internal/factory"
	"github.com/mikey/ransomware-detector/internal/features"
	"github.com/mikey/ransomware-detector/internal/ports"
	"github.com/mikey/ransomware-detector/internal/predictor"
	"github.com/mikey/ransomware-detector/internal/utils"
	"github.com/mikey/ransomware-detector/internal/whitelist"
)

// CachePolicy controls whether and how long verdicts are cached
type CachePolicy struct {
	Enabled bool
	TTL     time.Duration
}

// serviceParams gathers the collaborators of the detector service
type serviceParams struct {
	dig.In

	Config    *config.Config
	Logger    *zap.Logger
	Predictor *predictor.Predictor
	Explainer *explainer.Service
	Narrator  factory.ClosableNarrator
	Cache     factory.StoppableCache
	Allowlist *whitelist.Checker
	Policy    CachePolicy
}

// newDetectorService keeps disabled collaborators as untyped nils so the
// service sees them as absent
func newDetectorService(p serviceParams) *core.DetectorService {
	var (
		expl      core.Explainer
		narr      core.Narrator
		cache     core.CacheRepository
		allowlist core.Allowlist
	)
	if p.Explainer != nil {
		expl = p.Explainer
	}
	if p.Narrator != nil {
		narr = p.Narrator
	}
	if p.Cache != nil {
		cache = p.Cache
	}
	if p.Allowlist != nil {
		allowlist = p.Allowlist
	}

	return core.NewDetectorService(
		p.Predictor,
		expl,
		narr,
		cache,
		allowlist,
		p.Logger,
		p.Policy.Enabled,
		p.Policy.TTL,
		p.Config.GetDetection().Threshold,
	)
}

// providePipeline registers everything between the config and the sample
// filter. Callers register *config.Config, *zap.Logger, CachePolicy and
// factory.StoppableCache first.
func providePipeline(container *dig.Container) error {
	providers := []interface{}{
		utils.NewTextProcessor,
		factory.NewDetectorFactory,
		factory.NewNarratorFactory,
		factory.NewFilterFactory,

		func(f *factory.DetectorFactory) (*features.Schema, error) {
			return f.CreateSchema()
		},
		func(f *factory.DetectorFactory) (*artifacts.Loader, error) {
			return f.CreateArtifactLoader()
		},
		func(f *factory.DetectorFactory, schema *features.Schema, loader *artifacts.Loader) *predictor.Predictor {
			return f.CreatePredictor(schema, loader)
		},
		func(f *factory.DetectorFactory, schema *features.Schema, loader *artifacts.Loader) *explainer.Service {
			return f.CreateExplainer(schema, loader)
		},
		func(f *factory.DetectorFactory) (*whitelist.Checker, error) {
			return f.CreateAllowlist()
		},
		func(f *factory.NarratorFactory) (factory.ClosableNarrator, error) {
			return f.CreateNarrator(context.Background())
		},
		newDetectorService,
		func(f *factory.FilterFactory) (ports.SampleFilter, error) {
			return f.CreateSampleFilter()
		},
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}
