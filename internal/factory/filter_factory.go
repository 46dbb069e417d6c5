package factory

import (
	"fmt"

	"github.com/mikey/ransomware-detector/internal/adapters/filter"
	"github.com/mikey/ransomware-detector/internal/config"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/ports"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

// FilterFactory creates sample filters based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.DetectorService
	textProcessor *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.DetectorService, textProcessor *utils.TextProcessor) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		textProcessor: textProcessor,
	}
}

// CreateSampleFilter creates a sample filter based on the configuration
func (f *FilterFactory) CreateSampleFilter() (ports.SampleFilter, error) {
	filterType := f.cfg.GetString("server.filter_type")

	switch filterType {
	case "postfix":
		s := f.cfg.GetServer()
		return filter.NewPostfixFilter(f.service, f.logger, f.textProcessor, filter.PostfixOptions{
			ListenAddr:        s.ListenAddress,
			BlockRansomware:   s.BlockRansomware,
			MaxAttachmentSize: s.MaxAttachmentSize,
			TempDir:           s.TempDir,
			StatusHeader:      s.StatusHeader,
			ScoreHeader:       s.ScoreHeader,
			ReasonHeader:      s.ReasonHeader,
			PostfixAddr:       s.PostfixAddress,
			PostfixPort:       s.PostfixPort,
			PostfixEnabled:    s.PostfixEnabled,
		}), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.explain"),
			f.cfg.GetBool("cli.json"),
			f.cfg.GetBool("cli.verbose"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}
