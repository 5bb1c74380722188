// Package config provides configuration management for the redactifai application.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ssgrummons/RedactifAI/internal/phi"
)

// Config holds all configuration settings for the redactifai application.
// Configuration precedence: CLI flags > Environment variables > Config file > Defaults
type Config struct {
	// MaskingLevel selects which PHI categories are masked
	// (SAFE_HARBOR, LIMITED_DATASET, CUSTOM)
	MaskingLevel string

	// CustomCategories is the category set masked under CUSTOM level
	CustomCategories []string

	// PolicyFile optionally supplies CustomCategories and a surface-form
	// dictionary from a YAML policy document
	PolicyFile string

	// Dictionary maps known surface forms to categories for the pattern
	// PHI provider; populated from the policy file
	Dictionary map[string]string

	// ConfidenceThreshold drops entities below it before matching [0,1]
	ConfidenceThreshold float64

	// PaddingPx is added on all four sides of each mask rectangle
	PaddingPx int

	// FuzzyWordThreshold is the edit-distance tolerance for aligning one
	// OCR word against the full text
	FuzzyWordThreshold int

	// FuzzyEntityThreshold is the edit-distance tolerance for matching an
	// entity against OCR words
	FuzzyEntityThreshold int

	// MinSimilarityRatio guards fuzzy entity matching [0,1]
	MinSimilarityRatio float64

	// MaxOCRSizeMB bounds the payload sent to the OCR provider
	MaxOCRSizeMB float64

	// MaskColor is the fill color as "R,G,B"
	MaskColor string

	// DebugMode renders translucent annotated masks instead of opaque fills
	DebugMode bool

	// RenderDPI is the PDF rasterization resolution
	RenderDPI int

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat selects console or json log output
	LogFormat string

	// Workers bounds concurrent document processing in batch mode
	Workers int

	// OCR configures the OCR provider
	OCR OCRConfig

	// PHI configures the PHI detection provider
	PHI PHIConfig
}

// OCRConfig holds configuration for the OCR provider
type OCRConfig struct {
	// Provider is the OCR backend (anthropic, openai, google, ollama)
	Provider string

	// Model is the backend-specific model name
	Model string

	// Endpoint is the API endpoint (Ollama only)
	Endpoint string

	// APIKey is read from provider-specific environment variables
	APIKey string

	// MaxRetries bounds retry attempts
	MaxRetries int

	// RequestsPerSecond paces API calls; zero disables pacing
	RequestsPerSecond float64
}

// PHIConfig holds configuration for the PHI detection provider
type PHIConfig struct {
	// Provider is the detection backend (anthropic, openai, ollama, pattern)
	Provider string

	// Model is the backend-specific model name
	Model string

	// Endpoint is the API endpoint (Ollama only)
	Endpoint string

	// APIKey is read from provider-specific environment variables
	APIKey string

	// MaxRetries bounds retry attempts
	MaxRetries int

	// MaxInputChars chunks detection input above this size; zero disables
	MaxInputChars int
}

// Load reads configuration from multiple sources and returns a Config instance.
// Sources are checked in this order: CLI flags > env vars > config file > defaults
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigName(".redactifai")
			v.SetConfigType("yaml")
		}
	}

	// Config file is optional; env vars and defaults cover everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("REDACTIFAI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	config := &Config{
		MaskingLevel:         v.GetString("masking-level"),
		CustomCategories:     v.GetStringSlice("custom-categories"),
		PolicyFile:           v.GetString("policy-file"),
		ConfidenceThreshold:  v.GetFloat64("confidence-threshold"),
		PaddingPx:            v.GetInt("padding-px"),
		FuzzyWordThreshold:   v.GetInt("fuzzy-word-threshold"),
		FuzzyEntityThreshold: v.GetInt("fuzzy-entity-threshold"),
		MinSimilarityRatio:   v.GetFloat64("min-similarity-ratio"),
		MaxOCRSizeMB:         v.GetFloat64("max-ocr-size-mb"),
		MaskColor:            v.GetString("mask-color"),
		DebugMode:            v.GetBool("debug-mode"),
		RenderDPI:            v.GetInt("render-dpi"),
		LogLevel:             v.GetString("log-level"),
		LogFormat:            v.GetString("log-format"),
		Workers:              v.GetInt("workers"),
		OCR: OCRConfig{
			Provider:          v.GetString("ocr-provider"),
			Model:             v.GetString("ocr-model"),
			Endpoint:          v.GetString("ocr-endpoint"),
			MaxRetries:        v.GetInt("ocr-max-retries"),
			RequestsPerSecond: v.GetFloat64("ocr-requests-per-second"),
		},
		PHI: PHIConfig{
			Provider:      v.GetString("phi-provider"),
			Model:         v.GetString("phi-model"),
			Endpoint:      v.GetString("phi-endpoint"),
			MaxRetries:    v.GetInt("phi-max-retries"),
			MaxInputChars: v.GetInt("phi-max-input-chars"),
		},
	}

	config.OCR.APIKey = apiKeyForProvider(config.OCR.Provider)
	config.PHI.APIKey = apiKeyForProvider(config.PHI.Provider)

	if config.PolicyFile != "" {
		policy, err := LoadPolicy(config.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file: %w", err)
		}
		if len(policy.CustomCategories) > 0 {
			config.CustomCategories = policy.CustomCategories
		}
		config.Dictionary = policy.Dictionary
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("masking-level", string(phi.LevelSafeHarbor))
	v.SetDefault("custom-categories", []string{})
	v.SetDefault("policy-file", "")
	v.SetDefault("confidence-threshold", 0.80)
	v.SetDefault("padding-px", 5)
	v.SetDefault("fuzzy-word-threshold", 2)
	v.SetDefault("fuzzy-entity-threshold", 2)
	v.SetDefault("min-similarity-ratio", 0.6)
	v.SetDefault("max-ocr-size-mb", 10.0)
	v.SetDefault("mask-color", "0,0,0")
	v.SetDefault("debug-mode", false)
	v.SetDefault("render-dpi", 300)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("workers", 4)

	v.SetDefault("ocr-provider", "anthropic")
	v.SetDefault("ocr-model", "")
	v.SetDefault("ocr-endpoint", "http://localhost:11434")
	v.SetDefault("ocr-max-retries", 3)
	v.SetDefault("ocr-requests-per-second", 0.0)

	v.SetDefault("phi-provider", "anthropic")
	v.SetDefault("phi-model", "")
	v.SetDefault("phi-endpoint", "http://localhost:11434")
	v.SetDefault("phi-max-retries", 3)
	v.SetDefault("phi-max-input-chars", 0)
}

// Validate checks that the configuration is valid and internally consistent
func (c *Config) Validate() error {
	if _, err := phi.ParseMaskingLevel(c.MaskingLevel); err != nil {
		return err
	}

	level, _ := phi.ParseMaskingLevel(c.MaskingLevel)
	if level == phi.LevelCustom && len(c.CustomCategories) == 0 {
		return fmt.Errorf("custom-categories cannot be empty when masking-level is CUSTOM")
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence-threshold must be in [0,1], got %g", c.ConfidenceThreshold)
	}
	if c.PaddingPx < 0 {
		return fmt.Errorf("padding-px must be non-negative, got %d", c.PaddingPx)
	}
	if c.FuzzyWordThreshold < 0 {
		return fmt.Errorf("fuzzy-word-threshold must be non-negative, got %d", c.FuzzyWordThreshold)
	}
	if c.FuzzyEntityThreshold < 0 {
		return fmt.Errorf("fuzzy-entity-threshold must be non-negative, got %d", c.FuzzyEntityThreshold)
	}
	if c.MinSimilarityRatio < 0 || c.MinSimilarityRatio > 1 {
		return fmt.Errorf("min-similarity-ratio must be in [0,1], got %g", c.MinSimilarityRatio)
	}
	if c.MaxOCRSizeMB <= 0 {
		return fmt.Errorf("max-ocr-size-mb must be positive, got %g", c.MaxOCRSizeMB)
	}
	if _, err := ParseMaskColor(c.MaskColor); err != nil {
		return err
	}
	if c.RenderDPI <= 0 {
		return fmt.Errorf("render-dpi must be positive, got %d", c.RenderDPI)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log-level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log-format %q, must be console or json", c.LogFormat)
	}

	if err := c.validateOCRConfig(); err != nil {
		return fmt.Errorf("invalid OCR configuration: %w", err)
	}
	if err := c.validatePHIConfig(); err != nil {
		return fmt.Errorf("invalid PHI configuration: %w", err)
	}

	return nil
}

// validateOCRConfig validates the OCR provider configuration
func (c *Config) validateOCRConfig() error {
	validProviders := map[string]bool{
		"anthropic": true,
		"openai":    true,
		"google":    true,
		"ollama":    true,
	}
	provider := strings.ToLower(c.OCR.Provider)
	if !validProviders[provider] {
		return fmt.Errorf("invalid ocr-provider %q, must be one of: anthropic, openai, google, ollama", c.OCR.Provider)
	}
	c.OCR.Provider = provider

	if provider == "ollama" && c.OCR.Endpoint == "" {
		return fmt.Errorf("ocr-endpoint cannot be empty for Ollama provider")
	}
	if provider != "ollama" && c.OCR.APIKey == "" {
		return fmt.Errorf("API key not found for provider %s, check environment variables", provider)
	}
	if c.OCR.MaxRetries < 0 {
		return fmt.Errorf("ocr-max-retries must be non-negative, got %d", c.OCR.MaxRetries)
	}
	return nil
}

// validatePHIConfig validates the PHI provider configuration
func (c *Config) validatePHIConfig() error {
	validProviders := map[string]bool{
		"anthropic": true,
		"openai":    true,
		"ollama":    true,
		"pattern":   true,
	}
	provider := strings.ToLower(c.PHI.Provider)
	if !validProviders[provider] {
		return fmt.Errorf("invalid phi-provider %q, must be one of: anthropic, openai, ollama, pattern", c.PHI.Provider)
	}
	c.PHI.Provider = provider

	if provider == "ollama" && c.PHI.Endpoint == "" {
		return fmt.Errorf("phi-endpoint cannot be empty for Ollama provider")
	}
	if provider == "anthropic" || provider == "openai" {
		if c.PHI.APIKey == "" {
			return fmt.Errorf("API key not found for provider %s, check environment variables", provider)
		}
	}
	if c.PHI.MaxRetries < 0 {
		return fmt.Errorf("phi-max-retries must be non-negative, got %d", c.PHI.MaxRetries)
	}
	if c.PHI.MaxInputChars < 0 {
		return fmt.Errorf("phi-max-input-chars must be non-negative, got %d", c.PHI.MaxInputChars)
	}
	return nil
}

// ParseMaskColor parses an "R,G,B" triple into its components
func ParseMaskColor(s string) ([3]uint8, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]uint8{}, fmt.Errorf("mask-color must be R,G,B, got %q", s)
	}

	var rgb [3]uint8
	for i, part := range parts {
		var v int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &v); err != nil {
			return [3]uint8{}, fmt.Errorf("invalid mask-color component %q", part)
		}
		if v < 0 || v > 255 {
			return [3]uint8{}, fmt.Errorf("mask-color component %d out of range", v)
		}
		rgb[i] = uint8(v)
	}
	return rgb, nil
}

// apiKeyForProvider loads the appropriate API key from environment variables
func apiKeyForProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	default:
		// Ollama and pattern need no API key.
		return ""
	}
}

// String returns a string representation of the configuration (with sensitive data redacted)
func (c *Config) String() string {
	redact := func(key string) string {
		if key == "" {
			return "not set"
		}
		if len(key) > 8 {
			return "***" + key[len(key)-4:]
		}
		return "***"
	}

	return fmt.Sprintf(`Configuration:
  MaskingLevel: %s
  CustomCategories: %v
  ConfidenceThreshold: %.2f
  PaddingPx: %d
  FuzzyWordThreshold: %d
  FuzzyEntityThreshold: %d
  MinSimilarityRatio: %.2f
  MaxOCRSizeMB: %.1f
  MaskColor: %s
  DebugMode: %t
  RenderDPI: %d
  LogLevel: %s
  Workers: %d
  OCR:
    Provider: %s
    Model: %s
    Endpoint: %s
    APIKey: %s
  PHI:
    Provider: %s
    Model: %s
    Endpoint: %s
    APIKey: %s
    MaxInputChars: %d`,
		c.MaskingLevel,
		c.CustomCategories,
		c.ConfidenceThreshold,
		c.PaddingPx,
		c.FuzzyWordThreshold,
		c.FuzzyEntityThreshold,
		c.MinSimilarityRatio,
		c.MaxOCRSizeMB,
		c.MaskColor,
		c.DebugMode,
		c.RenderDPI,
		c.LogLevel,
		c.Workers,
		c.OCR.Provider,
		c.OCR.Model,
		c.OCR.Endpoint,
		redact(c.OCR.APIKey),
		c.PHI.Provider,
		c.PHI.Model,
		c.PHI.Endpoint,
		redact(c.PHI.APIKey),
		c.PHI.MaxInputChars,
	)
}
