package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/ransomware-detector/internal/artifacts"
	"github.com/mikey/ransomware-detector/internal/di"
	"github.com/mikey/ransomware-detector/internal/factory"
	"github.com/mikey/ransomware-detector/internal/ports"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Top-level failures print a fixed line; details go to the log
const failureMessage = "analysis failed"

func main() {
	flags := di.ParseFlags()
	if flags.InputFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: ransomware-detector -file <path> [-explain] [-json]")
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, failureMessage)
		os.Exit(1)
	}

	os.Exit(execute(container, flags, os.Stderr))
}

// execute runs the analysis and returns the process exit code
func execute(container *dig.Container, flags *di.CLIFlags, stderr io.Writer) int {
	logger := zap.NewNop()
	if err := container.Invoke(func(l *zap.Logger) { logger = l }); err != nil {
		fmt.Fprintln(stderr, failureMessage)
		return 1
	}

	if err := container.Invoke(func(p runParams) error { return run(p, flags) }); err != nil {
		// run logs its own failures; this catches wiring errors
		logger.Error("Analysis aborted", zap.Error(err))
		fmt.Fprintln(stderr, failureMessage)
		return 1
	}
	return 0
}

type runParams struct {
	dig.In

	Logger   *zap.Logger
	Filter   ports.SampleFilter
	Narrator factory.ClosableNarrator
}

func run(p runParams, flags *di.CLIFlags) error {
	logger := p.Logger
	defer logger.Sync()

	if p.Narrator != nil {
		defer func() {
			if err := p.Narrator.Close(); err != nil {
				logger.Error("Failed to close narrator", zap.Error(err))
			}
		}()
	}

	if _, err := os.Stat(flags.InputFile); err != nil {
		logger.Error("Input file not accessible", zap.String("file", flags.InputFile), zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := p.Filter.ProcessFile(ctx, flags.InputFile); err != nil {
		if errors.Is(err, artifacts.ErrArtifactMissing) {
			logger.Error("Model artifact missing, check artifacts.model_path or -model", zap.Error(err))
		} else {
			logger.Error("Failed to analyze file", zap.String("file", flags.InputFile), zap.Error(err))
		}
		return err
	}
	return nil
}
