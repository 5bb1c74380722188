package ocr

import (
	"context"
	"fmt"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// NewVisionClient creates a vision client for the configured backend
func NewVisionClient(ctx context.Context, cfg *ClientConfig, log *logger.Logger) (VisionClient, error) {
	if log == nil {
		log = logger.Get()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicVisionClient(cfg.APIKey, cfg.MaxRetries, log), nil

	case ProviderOpenAI:
		return NewOpenAIVisionClient(cfg.APIKey, cfg.MaxRetries, log), nil

	case ProviderGoogle:
		client, err := NewGoogleVisionClient(ctx, cfg.APIKey, cfg.MaxRetries, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google vision client: %w", err)
		}
		return client, nil

	case ProviderOllama:
		return NewOllamaVisionClient(cfg.Endpoint, cfg.MaxRetries, log), nil

	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", cfg.Provider)
	}
}

// NewProvider builds a full OCR provider: the configured vision client
// wrapped in a per-page processor.
func NewProvider(ctx context.Context, cfg *ClientConfig, renderPages PageRenderer, log *logger.Logger) (Provider, error) {
	client, err := NewVisionClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return NewProcessor(&ProcessorConfig{
		Logger:            log,
		Client:            client,
		Model:             cfg.Model,
		RenderPages:       renderPages,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}
