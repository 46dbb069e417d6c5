package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/ransomware-detector/internal/di"
	"github.com/mikey/ransomware-detector/internal/factory"
	"github.com/mikey/ransomware-detector/internal/ports"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

var configFile = flag.String("config", "", "Path to config file (default: search standard locations)")

func main() {
	flag.Parse()

	// Build the dependency injection container
	container, err := di.BuildContainer(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

type runParams struct {
	dig.In

	Logger   *zap.Logger
	Filter   ports.SampleFilter
	Narrator factory.ClosableNarrator
	Cache    factory.StoppableCache
}

// run is the main application function that gets all dependencies injected
func run(p runParams) error {
	logger := p.Logger
	defer logger.Sync()

	if err := p.Filter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutting down...", zap.String("signal", sig.String()))

	if err := p.Filter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	if p.Narrator != nil {
		if err := p.Narrator.Close(); err != nil {
			logger.Error("Failed to close narrator", zap.Error(err))
		}
	}

	if p.Cache != nil {
		p.Cache.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
