package phi

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// AnthropicDetector implements Provider using Anthropic's Claude API
type AnthropicDetector struct {
	client           anthropic.Client
	model            string
	customCategories map[string]bool
	logger           *logger.Logger
}

// NewAnthropicDetector creates a new Claude-backed PHI detector
func NewAnthropicDetector(apiKey, model string, maxRetries int, customCategories map[string]bool, log *logger.Logger) *AnthropicDetector {
	if log == nil {
		log = logger.Get()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if maxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(maxRetries))
	}

	return &AnthropicDetector{
		client:           anthropic.NewClient(opts...),
		model:            model,
		customCategories: customCategories,
		logger:           log,
	}
}

// Detect finds PHI entities using Claude
func (a *AnthropicDetector) Detect(ctx context.Context, fullText string, level MaskingLevel) ([]Entity, error) {
	a.logger.WithProvider("anthropic").WithFields("model", a.model, "chars", len(fullText)).Debug("Detecting PHI with Anthropic Claude")

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(fmt.Sprintf(detectionPrompt, fullText)),
			),
		},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}
	if content == "" {
		return nil, fmt.Errorf("no text content in Anthropic response")
	}

	entities, err := parseDetection(content, len(fullText), a.logger)
	if err != nil {
		a.logger.WithFields("content", content).Debug("Failed to parse Anthropic detection response")
		return nil, err
	}

	filtered := FilterByLevel(entities, level, a.customCategories)
	a.logger.WithFields("detected", len(entities), "after_filter", len(filtered)).Debug("Anthropic detection completed")
	return filtered, nil
}

// Name returns the provider name
func (a *AnthropicDetector) Name() string {
	return "anthropic"
}
