package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/ransomware-detector/internal/adapters/narrator"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Narrator is an implementation of the Narrator interface using Google Gemini
type Narrator struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxLength     int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarrator creates a new Gemini narrator
func NewNarrator(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxLength int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Narrator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SystemInstruction = genai.NewUserContent(genai.Text(narrator.SystemPrompt))

	return &Narrator{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxLength:     maxLength,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (n *Narrator) Close() error {
	if n.client != nil {
		return n.client.Close()
	}
	return nil
}

// Narrate summarizes a report in plain language
func (n *Narrator) Narrate(ctx context.Context, report *core.AnalysisReport) (string, error) {
	resp, err := n.model.GenerateContent(ctx, genai.Text(narrator.BuildPrompt(report)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini response has no text")
	}

	n.logger.Debug("Narrative generated", zap.String("model", n.modelName))
	return narrator.Clean(n.textProcessor, b.String(), n.maxLength), nil
}
