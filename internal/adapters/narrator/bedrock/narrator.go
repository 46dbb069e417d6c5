package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/ransomware-detector/internal/adapters/narrator"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

// Invoker is the subset of the Bedrock runtime client used by the narrator
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Narrator is an implementation of the Narrator interface using Amazon Bedrock
type Narrator struct {
	client        Invoker
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxLength     int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarrator creates a new Bedrock narrator
func NewNarrator(
	client Invoker,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxLength int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Narrator {
	return &Narrator{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxLength:     maxLength,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// NewNarratorFromRegion loads the default AWS configuration for region
func NewNarratorFromRegion(
	ctx context.Context,
	region string,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxLength int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Narrator, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewNarrator(bedrockruntime.NewFromConfig(awsCfg), modelID, maxTokens, temperature, topP,
		maxLength, logger, textProcessor), nil
}

func (n *Narrator) isAnthropicModel() bool {
	return strings.HasPrefix(n.modelID, "anthropic.")
}

func (n *Narrator) isAmazonTitanModel() bool {
	return strings.HasPrefix(n.modelID, "amazon.titan")
}

// Narrate summarizes a report in plain language
func (n *Narrator) Narrate(ctx context.Context, report *core.AnalysisReport) (string, error) {
	prompt := narrator.SystemPrompt + "\n\n" + narrator.BuildPrompt(report)

	var payload map[string]interface{}
	switch {
	case n.isAnthropicModel():
		payload = map[string]interface{}{
			"prompt":               "\n\nHuman: " + prompt + "\n\nAssistant:",
			"max_tokens_to_sample": n.maxTokens,
			"temperature":          n.temperature,
			"top_p":                n.topP,
		}
	case n.isAmazonTitanModel():
		payload = map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": n.maxTokens,
				"temperature":   n.temperature,
				"topP":          n.topP,
			},
		}
	default:
		payload = map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  n.maxTokens,
			"temperature": n.temperature,
			"top_p":       n.topP,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := n.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(n.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	text, err := n.responseText(resp.Body)
	if err != nil {
		return "", err
	}

	n.logger.Debug("Narrative generated", zap.String("model", n.modelID))
	return narrator.Clean(n.textProcessor, text, n.maxLength), nil
}

func (n *Narrator) responseText(body []byte) (string, error) {
	switch {
	case n.isAnthropicModel():
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	case n.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", errors.New("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, s := range []string{genericResp.Output, genericResp.Text, genericResp.Response} {
			if s != "" {
				return s, nil
			}
		}
		return string(body), nil
	}
}

// Close releases resources held by the narrator
func (n *Narrator) Close() error {
	return nil
}
