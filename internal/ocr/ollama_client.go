package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ssgrummons/RedactifAI/internal/logger"
	"github.com/ssgrummons/RedactifAI/internal/ollama"
)

// OllamaVisionClient is an adapter that implements VisionClient for a
// local Ollama instance
type OllamaVisionClient struct {
	client *ollama.Client
	logger *logger.Logger
}

// NewOllamaVisionClient creates a new Ollama vision client
func NewOllamaVisionClient(endpoint string, maxRetries int, log *logger.Logger) *OllamaVisionClient {
	if log == nil {
		log = logger.Get()
	}

	return &OllamaVisionClient{
		client: ollama.NewClient(
			ollama.WithEndpoint(endpoint),
			ollama.WithMaxRetries(maxRetries),
			ollama.WithLogger(log),
		),
		logger: log,
	}
}

// RecognizePage performs OCR on one page using a local vision model
func (o *OllamaVisionClient) RecognizePage(ctx context.Context, model string, pngImage []byte) (*PageRecognition, error) {
	o.logger.WithProvider("ollama").WithFields("model", model).Debug("Recognizing page with Ollama")

	imageData := base64.StdEncoding.EncodeToString(pngImage)
	resp, err := o.client.GenerateWithVision(ctx, model, recognitionPrompt, []string{imageData})
	if err != nil {
		return nil, fmt.Errorf("ollama vision request failed: %w", err)
	}

	rec, err := parseRecognition(resp.Response)
	if err != nil {
		o.logger.WithFields("response", resp.Response).Debug("Failed to parse Ollama recognition response")
		return nil, err
	}

	o.logger.WithFields("words", len(rec.Words)).Debug("Ollama recognition completed")
	return rec, nil
}

// HealthCheck verifies that Ollama is accessible and the model is available
func (o *OllamaVisionClient) HealthCheck(ctx context.Context, model string) error {
	if err := o.client.HealthCheck(ctx); err != nil {
		return err
	}

	found, err := o.client.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("model %q is not available in Ollama", model)
	}
	return nil
}

// Name returns the provider name
func (o *OllamaVisionClient) Name() string {
	return "ollama"
}
