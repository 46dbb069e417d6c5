package di

import (
	"flag"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ransomware-detector/internal/config"
	"github.com/mikey/ransomware-detector/internal/factory"
	"github.com/mikey/ransomware-detector/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	InputFile string
	Explain   bool
	JSON      bool

	// Artifact overrides
	ModelPath   string
	FeaturesCSV string
	OutputDir   string

	// Detection flags
	Threshold float64

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := registerFlags(flag.CommandLine)
	flag.Parse()
	return flags
}

func registerFlags(fs *flag.FlagSet) *CLIFlags {
	flags := &CLIFlags{}

	fs.StringVar(&flags.InputFile, "file", "", "Windows executable to analyze (required)")
	fs.BoolVar(&flags.Explain, "explain", false, "Generate a local explanation and bar chart")
	fs.BoolVar(&flags.JSON, "json", false, "Print the report as JSON")

	fs.StringVar(&flags.ModelPath, "model", "", "Path to the classifier artifact")
	fs.StringVar(&flags.FeaturesCSV, "features", "", "Path to the training features CSV (schema header)")
	fs.StringVar(&flags.OutputDir, "output-dir", "", "Directory for explanation images")

	fs.Float64Var(&flags.Threshold, "threshold", -1, "Ransomware probability threshold (default from config)")

	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		if err := applyFlags(cfg, flags); err != nil {
			return nil, err
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// No cache for one-shot CLI runs
	if err := container.Provide(func() factory.StoppableCache { return nil }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() CachePolicy { return CachePolicy{} }); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overlays command line flags on the loaded configuration
func applyFlags(cfg *config.Config, flags *CLIFlags) error {
	cfg.Set("server.filter_type", "cli")
	cfg.Set("cli.explain", flags.Explain)
	cfg.Set("cli.json", flags.JSON)
	cfg.Set("cli.verbose", flags.Verbose)

	if flags.ModelPath != "" {
		cfg.Set("artifacts.model_path", flags.ModelPath)
	}
	if flags.FeaturesCSV != "" {
		cfg.Set("artifacts.features_csv", flags.FeaturesCSV)
	}
	if flags.OutputDir != "" {
		cfg.Set("explain.output_dir", flags.OutputDir)
	}
	if flags.Threshold >= 0 {
		if flags.Threshold > 1 {
			return fmt.Errorf("threshold must be within [0, 1], got %v", flags.Threshold)
		}
		cfg.Set("detection.threshold", flags.Threshold)
	}
	return nil
}
