package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// AnthropicVisionClient implements VisionClient for Anthropic's Claude API
type AnthropicVisionClient struct {
	client anthropic.Client
	logger *logger.Logger
}

// NewAnthropicVisionClient creates a new Anthropic Claude vision client
func NewAnthropicVisionClient(apiKey string, maxRetries int, log *logger.Logger) *AnthropicVisionClient {
	if log == nil {
		log = logger.Get()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if maxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(maxRetries))
	}

	return &AnthropicVisionClient{
		client: anthropic.NewClient(opts...),
		logger: log,
	}
}

// RecognizePage performs OCR on one page using Claude's vision API
func (a *AnthropicVisionClient) RecognizePage(ctx context.Context, model string, pngImage []byte) (*PageRecognition, error) {
	a.logger.WithProvider("anthropic").WithFields("model", model).Debug("Recognizing page with Anthropic Claude")

	imageData := base64.StdEncoding.EncodeToString(pngImage)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(recognitionPrompt),
				anthropic.NewImageBlockBase64("image/png", imageData),
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

	rec, err := parseRecognition(content)
	if err != nil {
		a.logger.WithFields("content", content).Debug("Failed to parse Anthropic recognition response")
		return nil, err
	}

	a.logger.WithFields("words", len(rec.Words)).Debug("Anthropic recognition completed")
	return rec, nil
}

// HealthCheck verifies that the Anthropic API is accessible
func (a *AnthropicVisionClient) HealthCheck(ctx context.Context, model string) error {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 10,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic health check failed: %w", err)
	}
	return nil
}

// Name returns the provider name
func (a *AnthropicVisionClient) Name() string {
	return "anthropic"
}
