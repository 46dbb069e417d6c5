package factory

import (
	"context"
	"fmt"

	"github.com/mikey/ransomware-detector/internal/adapters/narrator/bedrock"
	"github.com/mikey/ransomware-detector/internal/adapters/narrator/gemini"
	"github.com/mikey/ransomware-detector/internal/adapters/narrator/openai"
	"github.com/mikey/ransomware-detector/internal/config"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

// ClosableNarrator is a narrator holding a provider client
type ClosableNarrator interface {
	core.Narrator
	Close() error
}

// NarratorFactory creates the optional verdict narrator
type NarratorFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarratorFactory creates a new narrator factory
func NewNarratorFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *NarratorFactory {
	return &NarratorFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateNarrator returns nil when narration is disabled
func (f *NarratorFactory) CreateNarrator(ctx context.Context) (ClosableNarrator, error) {
	narratorCfg := f.cfg.GetNarrator()

	switch narratorCfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		c := f.cfg.GetOpenAI()
		f.logger.Info("Creating OpenAI narrator", zap.String("model", c.ModelName))
		n, err := openai.NewNarrator(c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP,
			narratorCfg.MaxLength, f.logger, f.textProcessor)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "bedrock":
		c := f.cfg.GetBedrock()
		f.logger.Info("Creating Bedrock narrator",
			zap.String("model", c.ModelID),
			zap.String("region", c.Region))
		n, err := bedrock.NewNarratorFromRegion(ctx, c.Region, c.ModelID, c.MaxTokens, c.Temperature, c.TopP,
			narratorCfg.MaxLength, f.logger, f.textProcessor)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "gemini":
		c := f.cfg.GetGemini()
		f.logger.Info("Creating Gemini narrator", zap.String("model", c.ModelName))
		n, err := gemini.NewNarrator(ctx, c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP,
			narratorCfg.MaxLength, f.logger, f.textProcessor)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported narrator provider: %s", narratorCfg.Provider)
	}
}
