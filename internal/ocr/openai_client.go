package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// OpenAIVisionClient implements VisionClient for OpenAI's vision-capable chat API
type OpenAIVisionClient struct {
	client openai.Client
	logger *logger.Logger
}

// NewOpenAIVisionClient creates a new OpenAI vision client
func NewOpenAIVisionClient(apiKey string, maxRetries int, log *logger.Logger) *OpenAIVisionClient {
	if log == nil {
		log = logger.Get()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if maxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(maxRetries))
	}

	return &OpenAIVisionClient{
		client: openai.NewClient(opts...),
		logger: log,
	}
}

// RecognizePage performs OCR on one page using OpenAI's vision API
func (o *OpenAIVisionClient) RecognizePage(ctx context.Context, model string, pngImage []byte) (*PageRecognition, error) {
	o.logger.WithProvider("openai").WithFields("model", model).Debug("Recognizing page with OpenAI")

	imageData := base64.StdEncoding.EncodeToString(pngImage)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(recognitionPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: fmt.Sprintf("data:image/png;base64,%s", imageData),
				}),
			}),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	rec, err := parseRecognition(resp.Choices[0].Message.Content)
	if err != nil {
		o.logger.WithFields("content", resp.Choices[0].Message.Content).Debug("Failed to parse OpenAI recognition response")
		return nil, err
	}

	o.logger.WithFields("words", len(rec.Words)).Debug("OpenAI recognition completed")
	return rec, nil
}

// HealthCheck verifies that the OpenAI API is accessible and the model exists
func (o *OpenAIVisionClient) HealthCheck(ctx context.Context, model string) error {
	_, err := o.client.Models.Get(ctx, model)
	if err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

// Name returns the provider name
func (o *OpenAIVisionClient) Name() string {
	return "openai"
}
