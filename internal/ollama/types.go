package ollama

// GenerateRequest is the request body for /api/generate
type GenerateRequest struct {
	// Model is the model name (e.g. "llava", "llama3")
	Model string `json:"model"`

	// Prompt is the text prompt
	Prompt string `json:"prompt"`

	// Images holds base64-encoded images for vision models
	Images []string `json:"images,omitempty"`

	// Stream requests a streaming response when true
	Stream bool `json:"stream"`

	// Format constrains the output format ("json" or empty)
	Format string `json:"format,omitempty"`
}

// GenerateResponse is the response body for /api/generate
type GenerateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	CreatedAt string `json:"created_at"`
}

// ModelInfo describes one locally available model
type ModelInfo struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
}

// ListModelsResponse is the response body for /api/tags
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ErrorResponse is the error body returned by the Ollama API
type ErrorResponse struct {
	Error string `json:"error"`
}
