package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ransomware-detector/internal/config"
	"github.com/mikey/ransomware-detector/internal/factory"
	"github.com/mikey/ransomware-detector/internal/logging"
)

// BuildContainer creates and configures a dependency injection container
// for the mail gateway daemon
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewFromFile(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register cache repository and policy
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (factory.StoppableCache, error) {
		if !f.IsCacheEnabled() {
			return nil, nil
		}
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory, logger *zap.Logger) (CachePolicy, error) {
		ttl, err := f.GetCacheTTL()
		if err != nil {
			return CachePolicy{}, err
		}
		logger.Debug("Cache policy", zap.Bool("enabled", f.IsCacheEnabled()), zap.Duration("ttl", ttl))
		return CachePolicy{Enabled: f.IsCacheEnabled(), TTL: ttl}, nil
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	return container, nil
}
