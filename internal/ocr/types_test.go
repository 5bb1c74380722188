package ocr

import (
	"testing"

	"github.com/ssgrummons/RedactifAI/internal/geometry"
)

func page(num int, texts ...string) Page {
	p := Page{Number: num, Width: 1000, Height: 1000}
	for i, text := range texts {
		p.Words = append(p.Words, Word{
			Text:       text,
			Confidence: 0.9,
			Box:        geometry.NewBox(num, float64(i*60), 100, 50, 20),
		})
	}
	return p
}

func TestResult_WordCount(t *testing.T) {
	result := &Result{Pages: []Page{page(1, "John", "Smith"), page(2, "Street")}}
	if got := result.WordCount(); got != 3 {
		t.Errorf("WordCount() = %d, want 3", got)
	}
}

func TestResult_Words_Order(t *testing.T) {
	result := &Result{Pages: []Page{page(1, "a", "b"), page(2, "c")}}

	words := result.Words()
	want := []string{"a", "b", "c"}
	if len(words) != len(want) {
		t.Fatalf("Words() returned %d words, want %d", len(words), len(want))
	}
	for i, w := range words {
		if w.Text != want[i] {
			t.Errorf("word %d = %q, want %q", i, w.Text, want[i])
		}
	}
}

func TestResult_PageDimensions(t *testing.T) {
	result := &Result{Pages: []Page{{Number: 1, Width: 800, Height: 600}}}

	w, h := result.PageDimensions(1)
	if w != 800 || h != 600 {
		t.Errorf("PageDimensions(1) = (%d, %d), want (800, 600)", w, h)
	}

	w, h = result.PageDimensions(9)
	if w != 0 || h != 0 {
		t.Errorf("PageDimensions(9) = (%d, %d), want (0, 0)", w, h)
	}
}

func TestResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		wantErr bool
	}{
		{
			name:   "valid",
			result: Result{Pages: []Page{page(1, "ok")}},
		},
		{
			name:    "page number zero",
			result:  Result{Pages: []Page{{Number: 0}}},
			wantErr: true,
		},
		{
			name:    "negative page dims",
			result:  Result{Pages: []Page{{Number: 1, Width: -5, Height: 10}}},
			wantErr: true,
		},
		{
			name: "empty word text",
			result: Result{Pages: []Page{{
				Number: 1, Width: 10, Height: 10,
				Words: []Word{{Text: "", Box: geometry.NewBox(1, 0, 0, 1, 1)}},
			}}},
			wantErr: true,
		},
		{
			name: "negative word box",
			result: Result{Pages: []Page{{
				Number: 1, Width: 10, Height: 10,
				Words: []Word{{Text: "x", Box: geometry.BoundingBox{Page: 1, Width: -1}}},
			}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResult_BuildFullText(t *testing.T) {
	result := &Result{Pages: []Page{page(1, "John", "Smith"), page(2, "Street")}}
	result.BuildFullText()

	want := "John Smith\nStreet"
	if result.FullText != want {
		t.Errorf("BuildFullText produced %q, want %q", result.FullText, want)
	}
}

func TestResult_BuildFullText_Empty(t *testing.T) {
	result := &Result{}
	result.BuildFullText()
	if result.FullText != "" {
		t.Errorf("BuildFullText on empty result = %q, want empty", result.FullText)
	}
}
