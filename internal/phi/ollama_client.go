package phi

import (
	"context"
	"fmt"

	"github.com/ssgrummons/RedactifAI/internal/logger"
	"github.com/ssgrummons/RedactifAI/internal/ollama"
)

// OllamaDetector implements Provider using a local Ollama instance
type OllamaDetector struct {
	client           *ollama.Client
	model            string
	customCategories map[string]bool
	logger           *logger.Logger
}

// NewOllamaDetector creates a new Ollama-backed PHI detector
func NewOllamaDetector(endpoint, model string, maxRetries int, customCategories map[string]bool, log *logger.Logger) *OllamaDetector {
	if log == nil {
		log = logger.Get()
	}

	return &OllamaDetector{
		client: ollama.NewClient(
			ollama.WithEndpoint(endpoint),
			ollama.WithMaxRetries(maxRetries),
			ollama.WithLogger(log),
		),
		model:            model,
		customCategories: customCategories,
		logger:           log,
	}
}

// Detect finds PHI entities using a local text model
func (o *OllamaDetector) Detect(ctx context.Context, fullText string, level MaskingLevel) ([]Entity, error) {
	o.logger.WithProvider("ollama").WithFields("model", o.model, "chars", len(fullText)).Debug("Detecting PHI with Ollama")

	response, err := o.client.GenerateJSON(ctx, o.model, fmt.Sprintf(detectionPrompt, fullText))
	if err != nil {
		return nil, fmt.Errorf("ollama detection request failed: %w", err)
	}

	entities, err := parseDetection(response, len(fullText), o.logger)
	if err != nil {
		o.logger.WithFields("response", response).Debug("Failed to parse Ollama detection response")
		return nil, err
	}

	filtered := FilterByLevel(entities, level, o.customCategories)
	o.logger.WithFields("detected", len(entities), "after_filter", len(filtered)).Debug("Ollama detection completed")
	return filtered, nil
}

// Name returns the provider name
func (o *OllamaDetector) Name() string {
	return "ollama"
}
