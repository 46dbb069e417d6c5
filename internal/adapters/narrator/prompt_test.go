package narrator

import (
	"strings"
	"testing"

	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

func TestBuildPrompt(t *testing.T) {
	report := &core.AnalysisReport{
		Filename:    "setup.exe",
		SHA256:      "abc123",
		Label:       core.LabelRansomware,
		Probability: 0.912,
		Explanation: &core.ExplanationResult{
			TopFeatures: []core.FeatureContribution{
				{Feature: "file_entropy > 0.00", Impact: 0.31, Meaning: "High file entropy"},
				{Feature: "n_sections <= 0.00", Impact: -0.05, Meaning: "General influence on model decision."},
			},
		},
	}

	prompt := BuildPrompt(report)
	for _, want := range []string{`"setup.exe"`, "abc123", "91.2%", "file_entropy > 0.00", "+0.310", "towards Benign"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestClean(t *testing.T) {
	tp := utils.NewTextProcessor(zap.NewNop())
	got := Clean(tp, "  \"This file\n\nlooks   dangerous.\"  ", 0)
	if got != "This file looks dangerous." {
		t.Errorf("Clean = %q", got)
	}
}
