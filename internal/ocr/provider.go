package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider is the narrow capability interface the de-identification core
// depends on. Implementations own their client lifetimes.
type Provider interface {
	// Analyze runs OCR over an encoded document and returns the normalized
	// result: reading-order words per page and the concatenated full text.
	Analyze(ctx context.Context, document []byte, format string, language string) (*Result, error)

	// Name returns the provider name (e.g. "anthropic", "openai", "google", "ollama")
	Name() string
}

// ProviderType identifies an OCR backend
type ProviderType string

const (
	// ProviderAnthropic uses Anthropic's Claude vision API
	ProviderAnthropic ProviderType = "anthropic"

	// ProviderOpenAI uses OpenAI's vision-capable chat API
	ProviderOpenAI ProviderType = "openai"

	// ProviderGoogle uses Google's Gemini API
	ProviderGoogle ProviderType = "google"

	// ProviderOllama uses a local Ollama instance
	ProviderOllama ProviderType = "ollama"
)

// ClientConfig holds common configuration for all OCR backends
type ClientConfig struct {
	// Provider selects the backend
	Provider ProviderType

	// Model is the backend-specific model name
	Model string

	// Endpoint is the API endpoint (required for Ollama)
	Endpoint string

	// APIKey authenticates cloud backends
	APIKey string

	// MaxRetries bounds retry attempts for transient API failures; the
	// google backend does not apply it
	MaxRetries int

	// RequestsPerSecond paces API calls; zero disables pacing
	RequestsPerSecond float64
}

// Validate checks that the client configuration is complete
func (c *ClientConfig) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		if c.APIKey == "" {
			return fmt.Errorf("API key is required for %s provider", c.Provider)
		}
	case ProviderOllama:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for ollama provider")
		}
	default:
		return fmt.Errorf("unsupported OCR provider: %s", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.MaxRetries)
	}
	return nil
}

// DefaultModel returns a recommended default model for the given backend
func DefaultModel(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20241022"
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderGoogle:
		return "gemini-1.5-pro"
	case ProviderOllama:
		return "llava"
	default:
		return ""
	}
}

// RecognizedWord is one word as reported by a vision backend. Geometry is
// either a bbox [x, y, width, height] or a polygon of [x, y] vertices; a
// polygon is reduced to its enclosing axis-aligned box.
type RecognizedWord struct {
	Text       string      `json:"text"`
	BBox       []float64   `json:"bbox,omitempty"`
	Polygon    [][]float64 `json:"polygon,omitempty"`
	Confidence float64     `json:"confidence"`
}

// PageRecognition is the raw per-page output of a vision backend
type PageRecognition struct {
	// Width and Height are the page pixel dimensions as seen by the backend;
	// zero means unknown and the rendered image dimensions are used instead
	Width  int `json:"width"`
	Height int `json:"height"`

	// Normalized is true when coordinates are [0,1] page-relative
	Normalized bool `json:"normalized"`

	// Words is the reading-order word sequence
	Words []RecognizedWord `json:"words"`

	// Text is the page text with the backend's own whitespace; optional
	Text string `json:"text"`
}

// VisionClient is the transport-level interface each backend implements
type VisionClient interface {
	// RecognizePage performs OCR on one PNG-encoded page image
	RecognizePage(ctx context.Context, model string, pngImage []byte) (*PageRecognition, error)

	// HealthCheck verifies the backend is reachable and the model available
	HealthCheck(ctx context.Context, model string) error

	// Name returns the backend name
	Name() string
}

// recognitionPrompt instructs vision models to emit the page structure the
// normalized model expects.
const recognitionPrompt = `You are transcribing one page of a scanned medical document.

Extract ALL visible printed and handwritten text from this page image.
Return ONLY valid JSON with no markdown formatting, no code blocks, no explanation.

Format:
{
  "width": 2480,
  "height": 3508,
  "words": [
    {"text": "word", "bbox": [x, y, width, height], "confidence": 0.97}
  ],
  "text": "the page text with original line breaks"
}

Rules:
- List words strictly in reading order (left to right, top to bottom)
- bbox coordinates are pixels from the top-left (0,0) of the page
- confidence is 0.0-1.0, use 0.8 if uncertain
- "text" must contain every listed word in the same order
- Return {"words": [], "text": ""} if the page is blank`

// parseRecognition decodes a backend's JSON reply, tolerating markdown
// code fences some models wrap around their output.
func parseRecognition(raw string) (*PageRecognition, error) {
	cleaned := stripCodeFences(raw)

	var rec PageRecognition
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse recognition response: %w", err)
	}
	return &rec, nil
}

// stripCodeFences removes a leading/trailing markdown code fence if present
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
