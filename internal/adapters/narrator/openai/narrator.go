package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/ransomware-detector/internal/adapters/narrator"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Narrator is an implementation of the Narrator interface using OpenAI
type Narrator struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxLength     int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarrator creates a new OpenAI narrator
func NewNarrator(
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
		return nil, errors.New("openai API key is required")
	}

	return &Narrator{
		client:        openai.NewClient(apiKey),
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxLength:     maxLength,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Narrate summarizes a report in plain language
func (n *Narrator) Narrate(ctx context.Context, report *core.AnalysisReport) (string, error) {
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: n.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: narrator.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: narrator.BuildPrompt(report)},
		},
		MaxTokens:   n.maxTokens,
		Temperature: n.temperature,
		TopP:        n.topP,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from OpenAI")
	}

	n.logger.Debug("Narrative generated",
		zap.String("model", n.modelName),
		zap.String("response_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return narrator.Clean(n.textProcessor, resp.Choices[0].Message.Content, n.maxLength), nil
}

// Close releases resources held by the narrator
func (n *Narrator) Close() error {
	return nil
}
