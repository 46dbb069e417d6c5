package ports

import (
	"context"

	"github.com/mikey/ransomware-detector/internal/core"
)

// SampleFilter defines the interface for frontends that feed samples to the
// detector
type SampleFilter interface {
	// ProcessFile analyzes the sample at path and returns the report
	ProcessFile(ctx context.Context, path string) (*core.AnalysisReport, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
