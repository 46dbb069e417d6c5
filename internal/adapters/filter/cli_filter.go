package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mikey/ransomware-detector/internal/core"
	"go.uber.org/zap"
)

// CliFilter implements a command-line interface for ransomware detection
type CliFilter struct {
	analyzer   Analyzer
	logger     *zap.Logger
	explain    bool
	jsonOutput bool
	verbose    bool
	out        io.Writer
}

// NewCliFilter creates a new CLI filter writing to stdout
func NewCliFilter(analyzer Analyzer, logger *zap.Logger, explain, jsonOutput, verbose bool) (*CliFilter, error) {
	return &CliFilter{
		analyzer:   analyzer,
		logger:     logger,
		explain:    explain,
		jsonOutput: jsonOutput,
		verbose:    verbose,
		out:        os.Stdout,
	}, nil
}

// SetOutput redirects the report writer
func (f *CliFilter) SetOutput(w io.Writer) {
	f.out = w
}

// ProcessFile analyzes a file and prints the report
func (f *CliFilter) ProcessFile(ctx context.Context, path string) (*core.AnalysisReport, error) {
	f.logger.Debug("Processing file", zap.String("path", path))

	report, err := f.analyzer.Analyze(ctx, core.AnalysisRequest{Path: path, Explain: f.explain})
	if err != nil {
		f.logger.Error("Failed to analyze file", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	if f.jsonOutput {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
		return report, nil
	}

	f.printReport(report)
	return report, nil
}

func (f *CliFilter) printReport(report *core.AnalysisReport) {
	w := f.out

	fmt.Fprintf(w, "\n=== Sample ===\n")
	fmt.Fprintf(w, "File: %s\n", report.Filename)
	fmt.Fprintf(w, "SHA-256: %s\n", report.SHA256)
	if report.MimeType != "" {
		fmt.Fprintf(w, "Type: %s\n", report.MimeType)
	}

	fmt.Fprintf(w, "\n=== Results ===\n")
	fmt.Fprintf(w, "Label: %s\n", report.Label)
	fmt.Fprintf(w, "Probability: %.4f\n", report.Probability)
	fmt.Fprintf(w, "Is ransomware: %t\n", report.IsRansomware)
	fmt.Fprintf(w, "Source: %s\n", report.Source)

	if f.verbose && report.Prediction != nil {
		d := report.Prediction.Diagnostics
		fmt.Fprintf(w, "Structural parse: %s\n", d.StructuralStatus)
		fmt.Fprintf(w, "Reconciliation: %s\n", d.Reconciliation)
		fmt.Fprintf(w, "Scaling: %s\n", d.Scaling)
	}
	fmt.Fprintf(w, "Processing time: %v\n", report.Duration)

	if report.Explanation != nil {
		fmt.Fprintf(w, "\n=== Explanation ===\n")
		fmt.Fprintf(w, "Chart saved to: %s\n", report.Explanation.ImagePath)
		fmt.Fprintf(w, "Top contributing features:\n")
		for i, c := range report.Explanation.TopFeatures {
			fmt.Fprintf(w, "%d. %s (impact %+.4f)\n   %s\n", i+1, c.Feature, c.Impact, c.Meaning)
		}
	} else if report.ExplanationError != "" {
		fmt.Fprintf(w, "\nExplanation skipped: %s\n", report.ExplanationError)
	}

	if report.Narrative != "" {
		fmt.Fprintf(w, "\n=== Summary ===\n%s\n", report.Narrative)
	}
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
