package ocr

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// GoogleVisionClient implements VisionClient for Google's Gemini API
type GoogleVisionClient struct {
	client *genai.Client
	logger *logger.Logger
}

// NewGoogleVisionClient creates a new Google Gemini vision client
func NewGoogleVisionClient(ctx context.Context, apiKey string, maxRetries int, log *logger.Logger) (*GoogleVisionClient, error) {
	if log == nil {
		log = logger.Get()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GoogleVisionClient{
		client: client,
		logger: log,
	}, nil
}

// RecognizePage performs OCR on one page using Google's Gemini vision API
func (g *GoogleVisionClient) RecognizePage(ctx context.Context, model string, pngImage []byte) (*PageRecognition, error) {
	g.logger.WithProvider("google").WithFields("model", model).Debug("Recognizing page with Google Gemini")

	genModel := g.client.GenerativeModel(model)
	genModel.SetTemperature(0)
	genModel.ResponseMIMEType = "application/json"

	resp, err := genModel.GenerateContent(
		ctx,
		genai.Text(recognitionPrompt),
		genai.ImageData("png", pngImage),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	var content string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content = string(txt)
			break
		}
	}
	if content == "" {
		return nil, fmt.Errorf("no text content in Gemini response")
	}

	rec, err := parseRecognition(content)
	if err != nil {
		g.logger.WithFields("content", content).Debug("Failed to parse Gemini recognition response")
		return nil, err
	}

	g.logger.WithFields("words", len(rec.Words)).Debug("Gemini recognition completed")
	return rec, nil
}

// HealthCheck verifies that the Gemini API is accessible
func (g *GoogleVisionClient) HealthCheck(ctx context.Context, model string) error {
	genModel := g.client.GenerativeModel(model)
	if _, err := genModel.GenerateContent(ctx, genai.Text("ping")); err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}
	return nil
}

// Name returns the provider name
func (g *GoogleVisionClient) Name() string {
	return "google"
}

// Close closes the underlying Gemini client
func (g *GoogleVisionClient) Close() error {
	return g.client.Close()
}
