package ocr

import (
	"testing"
)

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
	}{
		{"anthropic with key", ClientConfig{Provider: ProviderAnthropic, APIKey: "k", Model: "m"}, false},
		{"anthropic missing key", ClientConfig{Provider: ProviderAnthropic, Model: "m"}, true},
		{"openai missing key", ClientConfig{Provider: ProviderOpenAI, Model: "m"}, true},
		{"ollama with endpoint", ClientConfig{Provider: ProviderOllama, Endpoint: "http://localhost:11434", Model: "llava"}, false},
		{"ollama missing endpoint", ClientConfig{Provider: ProviderOllama, Model: "llava"}, true},
		{"missing model", ClientConfig{Provider: ProviderAnthropic, APIKey: "k"}, true},
		{"negative retries", ClientConfig{Provider: ProviderAnthropic, APIKey: "k", Model: "m", MaxRetries: -1}, true},
		{"unknown provider", ClientConfig{Provider: "textract", Model: "m"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultModel(t *testing.T) {
	for _, provider := range []ProviderType{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama} {
		if DefaultModel(provider) == "" {
			t.Errorf("DefaultModel(%s) is empty", provider)
		}
	}
	if DefaultModel("bogus") != "" {
		t.Error("DefaultModel for unknown provider should be empty")
	}
}

func TestParseRecognition(t *testing.T) {
	raw := `{"width": 100, "height": 200, "words": [{"text": "hi", "bbox": [1,2,3,4], "confidence": 0.9}], "text": "hi"}`

	rec, err := parseRecognition(raw)
	if err != nil {
		t.Fatalf("parseRecognition returned error: %v", err)
	}
	if rec.Width != 100 || rec.Height != 200 {
		t.Errorf("dims = %dx%d, want 100x200", rec.Width, rec.Height)
	}
	if len(rec.Words) != 1 || rec.Words[0].Text != "hi" {
		t.Errorf("unexpected words: %+v", rec.Words)
	}
}

func TestParseRecognition_CodeFences(t *testing.T) {
	raw := "```json\n{\"words\": [], \"text\": \"\"}\n```"

	rec, err := parseRecognition(raw)
	if err != nil {
		t.Fatalf("parseRecognition returned error: %v", err)
	}
	if len(rec.Words) != 0 {
		t.Errorf("expected zero words, got %d", len(rec.Words))
	}
}

func TestParseRecognition_Invalid(t *testing.T) {
	if _, err := parseRecognition("not json at all"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
