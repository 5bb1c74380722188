package phi

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// OpenAIDetector implements Provider using OpenAI's chat API
type OpenAIDetector struct {
	client           openai.Client
	model            string
	customCategories map[string]bool
	logger           *logger.Logger
}

// NewOpenAIDetector creates a new OpenAI-backed PHI detector
func NewOpenAIDetector(apiKey, model string, maxRetries int, customCategories map[string]bool, log *logger.Logger) *OpenAIDetector {
	if log == nil {
		log = logger.Get()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if maxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(maxRetries))
	}

	return &OpenAIDetector{
		client:           openai.NewClient(opts...),
		model:            model,
		customCategories: customCategories,
		logger:           log,
	}
}

// Detect finds PHI entities using OpenAI
func (o *OpenAIDetector) Detect(ctx context.Context, fullText string, level MaskingLevel) ([]Entity, error) {
	o.logger.WithProvider("openai").WithFields("model", o.model, "chars", len(fullText)).Debug("Detecting PHI with OpenAI")

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(detectionPrompt, fullText)),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	entities, err := parseDetection(resp.Choices[0].Message.Content, len(fullText), o.logger)
	if err != nil {
		o.logger.WithFields("content", resp.Choices[0].Message.Content).Debug("Failed to parse OpenAI detection response")
		return nil, err
	}

	filtered := FilterByLevel(entities, level, o.customCategories)
	o.logger.WithFields("detected", len(entities), "after_filter", len(filtered)).Debug("OpenAI detection completed")
	return filtered, nil
}

// Name returns the provider name
func (o *OpenAIDetector) Name() string {
	return "openai"
}
