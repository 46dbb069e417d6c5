// Package narrator holds the prompt shared by the LLM-backed narrators.
package narrator

import (
	"fmt"
	"strings"

	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
)

// SystemPrompt frames every narration request
const SystemPrompt = "You are a malware analyst. Explain classifier verdicts to non-experts in plain language. Never speculate beyond the evidence given."

// BuildPrompt renders the user prompt for a report
func BuildPrompt(report *core.AnalysisReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A machine learning model analyzed the Windows executable %q (SHA-256 %s).\n",
		report.Filename, report.SHA256)
	fmt.Fprintf(&b, "Verdict: %s with a ransomware probability of %.1f%%.\n",
		report.Label, report.Probability*100)

	if report.Explanation != nil && len(report.Explanation.TopFeatures) > 0 {
		b.WriteString("The features that most influenced the decision were:\n")
		for _, f := range report.Explanation.TopFeatures {
			direction := "towards Ransomware"
			if f.Impact < 0 {
				direction = "towards Benign"
			}
			fmt.Fprintf(&b, "- %s (impact %+.3f, %s): %s\n", f.Feature, f.Impact, direction, f.Meaning)
		}
	}

	b.WriteString("\nWrite one short paragraph (at most four sentences) summarizing what this verdict means for the user and what they should do next. Respond with the paragraph only.")
	return b.String()
}

// Clean normalizes a model response to a single bounded paragraph
func Clean(tp *utils.TextProcessor, text string, maxLength int) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"")
	return tp.ProcessText(strings.Join(strings.Fields(text), " "), maxLength)
}
