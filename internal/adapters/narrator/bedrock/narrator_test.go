package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

type stubInvoker struct {
	body    string
	err     error
	payload map[string]interface{}
}

func (s *stubInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if err := json.Unmarshal(in.Body, &s.payload); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(s.body)}, nil
}

func TestNarrator_Narrate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modelID string
		body    string
		key     string
		want    string
	}{
		{"claude", "anthropic.claude-v2", `{"completion":" This file is likely ransomware. "}`, "max_tokens_to_sample", "This file is likely ransomware."},
		{"titan", "amazon.titan-text-express-v1", `{"results":[{"outputText":"Looks benign."}]}`, "textGenerationConfig", "Looks benign."},
		{"generic", "meta.llama3", `{"output":"Quarantine the file."}`, "max_tokens", "Quarantine the file."},
	}

	report := &core.AnalysisReport{Filename: "a.exe", Label: core.LabelRansomware, Probability: 0.9}
	tp := utils.NewTextProcessor(zap.NewNop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &stubInvoker{body: tt.body}
			n := NewNarrator(inv, tt.modelID, 200, 0.2, 0.9, 0, zap.NewNop(), tp)

			got, err := n.Narrate(context.Background(), report)
			if err != nil {
				t.Fatalf("Narrate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Narrate = %q, want %q", got, tt.want)
			}
			if _, ok := inv.payload[tt.key]; !ok {
				t.Errorf("payload missing %q: %v", tt.key, inv.payload)
			}
		})
	}
}

func TestNarrator_InvokeError(t *testing.T) {
	inv := &stubInvoker{err: errors.New("throttled")}
	n := NewNarrator(inv, "anthropic.claude-v2", 200, 0.2, 0.9, 0, zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))
	_, err := n.Narrate(context.Background(), &core.AnalysisReport{})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("err = %v", err)
	}
}
