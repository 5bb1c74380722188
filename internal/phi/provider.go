package phi

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// Provider is the narrow capability interface the de-identification core
// depends on for PHI detection. Masking-level filtering happens inside the
// provider; the core accepts whatever entities it is given.
type Provider interface {
	// Detect finds PHI entities in the document's full text. Returned
	// offsets address fullText directly.
	Detect(ctx context.Context, fullText string, level MaskingLevel) ([]Entity, error)

	// Name returns the provider name
	Name() string
}

// ProviderType identifies a PHI detection backend
type ProviderType string

const (
	// ProviderAnthropic uses Anthropic's Claude API
	ProviderAnthropic ProviderType = "anthropic"

	// ProviderOpenAI uses OpenAI's chat API
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama instance
	ProviderOllama ProviderType = "ollama"

	// ProviderPattern uses local regex and dictionary matching only
	ProviderPattern ProviderType = "pattern"
)

// ClientConfig holds common configuration for all PHI backends
type ClientConfig struct {
	// Provider selects the backend
	Provider ProviderType

	// Model is the backend-specific model name (unused by pattern)
	Model string

	// Endpoint is the API endpoint (required for Ollama)
	Endpoint string

	// APIKey authenticates cloud backends
	APIKey string

	// MaxRetries bounds retry attempts for transient API failures
	MaxRetries int

	// MaxInputChars splits detection into chunks when the text is longer;
	// zero means the backend takes the whole text in one call
	MaxInputChars int

	// CustomCategories is the category set emitted under LevelCustom
	CustomCategories []string

	// DictionaryTerms maps known surface forms to categories for the
	// pattern backend (e.g. facility names)
	DictionaryTerms map[string]string
}

// Validate checks that the client configuration is complete
func (c *ClientConfig) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("API key is required for %s provider", c.Provider)
		}
		if c.Model == "" {
			return fmt.Errorf("model is required for %s provider", c.Provider)
		}
	case ProviderOllama:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for ollama provider")
		}
		if c.Model == "" {
			return fmt.Errorf("model is required for ollama provider")
		}
	case ProviderPattern:
		// No credentials needed.
	default:
		return fmt.Errorf("unsupported PHI provider: %s", c.Provider)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.MaxInputChars < 0 {
		return fmt.Errorf("max input chars must be non-negative, got %d", c.MaxInputChars)
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
	case ProviderOllama:
		return "llama3"
	default:
		return ""
	}
}

// NewProvider builds a PHI detection provider from configuration. When
// MaxInputChars is positive the backend is wrapped so long documents are
// detected chunk by chunk transparently.
func NewProvider(cfg *ClientConfig, log *logger.Logger) (Provider, error) {
	if log == nil {
		log = logger.Get()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	custom := NormalizeCategorySet(cfg.CustomCategories)

	var provider Provider
	switch cfg.Provider {
	case ProviderAnthropic:
		provider = NewAnthropicDetector(cfg.APIKey, cfg.Model, cfg.MaxRetries, custom, log)
	case ProviderOpenAI:
		provider = NewOpenAIDetector(cfg.APIKey, cfg.Model, cfg.MaxRetries, custom, log)
	case ProviderOllama:
		provider = NewOllamaDetector(cfg.Endpoint, cfg.Model, cfg.MaxRetries, custom, log)
	case ProviderPattern:
		p, err := NewPatternDetector(cfg.DictionaryTerms, custom, log)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	if cfg.MaxInputChars > 0 {
		provider = NewChunkingProvider(provider, cfg.MaxInputChars, log)
	}

	return provider, nil
}

// detectionPrompt instructs LLM backends to locate PHI spans with exact
// character offsets into the supplied text.
const detectionPrompt = `You are reviewing the text of a medical document for Protected Health Information (PHI).

Find EVERY span of PHI in the text between the <document> tags.
Return ONLY valid JSON with no markdown formatting, no code blocks, no explanation.

Format:
{
  "entities": [
    {"text": "John Smith", "category": "Person", "subcategory": "", "offset": 120, "length": 10, "confidence": 0.97}
  ]
}

Rules:
- "offset" is the 0-based character offset of the span in the document text, counting every character including whitespace
- "length" is the span length in characters
- "text" must be exactly the document substring at [offset, offset+length)
- category examples: Person, Date, SSN, MRN, Phone, Email, Address, Provider, Organization
- confidence is 0.0-1.0
- Return {"entities": []} if no PHI is present

<document>
%s
</document>`

// detectionResponse mirrors the JSON the LLM backends emit
type detectionResponse struct {
	Entities []struct {
		Text        string  `json:"text"`
		Category    string  `json:"category"`
		Subcategory string  `json:"subcategory"`
		Offset      int     `json:"offset"`
		Length      int     `json:"length"`
		Confidence  float64 `json:"confidence"`
	} `json:"entities"`
}

// parseDetection decodes a backend's JSON reply into validated entities.
// Structurally invalid entries are dropped rather than failing the call.
func parseDetection(raw string, textLen int, log *logger.Logger) ([]Entity, error) {
	if log == nil {
		log = logger.Get()
	}
	cleaned := stripCodeFences(raw)

	var resp detectionResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse detection response: %w", err)
	}

	entities := make([]Entity, 0, len(resp.Entities))
	for _, item := range resp.Entities {
		e := Entity{
			Text:        item.Text,
			Category:    item.Category,
			Subcategory: item.Subcategory,
			Offset:      item.Offset,
			Length:      item.Length,
			Confidence:  item.Confidence,
		}
		if e.Length == 0 {
			e.Length = len(e.Text)
		}
		if err := e.Validate(); err != nil {
			log.WithError(err).Warn("Dropping malformed entity from detection response")
			continue
		}
		if e.Offset >= textLen {
			log.WithFields("entity", e.Text, "offset", e.Offset).Warn("Dropping entity with offset beyond text")
			continue
		}
		entities = append(entities, e)
	}

	sortEntities(entities)
	return entities, nil
}

// sortEntities orders entities by offset then length for deterministic output
func sortEntities(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Offset != entities[j].Offset {
			return entities[i].Offset < entities[j].Offset
		}
		return entities[i].Length < entities[j].Length
	})
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
