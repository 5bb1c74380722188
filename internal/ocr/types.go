// Package ocr defines the normalized OCR data model and the provider
// interface every OCR backend must satisfy.
package ocr

import (
	"fmt"
	"strings"

	"github.com/ssgrummons/RedactifAI/internal/geometry"
)

// Word is a single recognized token with its page geometry. Words are
// atomic; downstream processing never splits them.
type Word struct {
	// Text is the recognized text content (nonempty)
	Text string

	// Confidence is the recognition confidence in [0,1]
	Confidence float64

	// Box is the word's bounding box in page-local coordinates
	Box geometry.BoundingBox
}

// Page holds the recognized words of one page in reading order, which is
// authoritative as supplied by the provider.
type Page struct {
	// Number is the 1-based page number
	Number int

	// Width is the page width in pixels
	Width int

	// Height is the page height in pixels
	Height int

	// Words is the ordered word sequence in reading order
	Words []Word
}

// Result is the normalized output of an OCR provider: ordered pages plus
// the concatenated document text over which PHI offsets are defined.
type Result struct {
	// Pages is the ordered page sequence
	Pages []Page

	// FullText is the concatenated document text. Whitespace between words
	// is informational; each word's text occurs as a substring in reading
	// order but separators vary by provider.
	FullText string
}

// WordCount returns the total number of words across all pages
func (r *Result) WordCount() int {
	count := 0
	for _, page := range r.Pages {
		count += len(page.Words)
	}
	return count
}

// Words returns all words of the document in page order then reading order
func (r *Result) Words() []Word {
	words := make([]Word, 0, r.WordCount())
	for _, page := range r.Pages {
		words = append(words, page.Words...)
	}
	return words
}

// PageDimensions returns the pixel dimensions of the given 1-based page,
// or (0, 0) when the page is unknown.
func (r *Result) PageDimensions(page int) (width, height int) {
	for _, p := range r.Pages {
		if p.Number == page {
			return p.Width, p.Height
		}
	}
	return 0, 0
}

// Validate checks page numbering and word geometry. A word or page with
// negative or non-finite dimensions is a fatal input error.
func (r *Result) Validate() error {
	for i, page := range r.Pages {
		if page.Number < 1 {
			return fmt.Errorf("page %d has invalid number %d", i, page.Number)
		}
		if page.Width < 0 || page.Height < 0 {
			return fmt.Errorf("page %d has negative dimensions %dx%d", page.Number, page.Width, page.Height)
		}
		for j, word := range page.Words {
			if word.Text == "" {
				return fmt.Errorf("empty word at page %d index %d", page.Number, j)
			}
			if err := word.Box.Validate(); err != nil {
				return fmt.Errorf("word %q on page %d: %w", word.Text, page.Number, err)
			}
		}
	}
	return nil
}

// BuildFullText joins all words into a document text (single spaces within
// a page, one newline between pages) and stores it on the result. Used
// when a provider does not supply its own concatenation.
func (r *Result) BuildFullText() {
	var sb strings.Builder
	for i, page := range r.Pages {
		if i > 0 {
			sb.WriteString("\n")
		}
		for j, word := range page.Words {
			if j > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(word.Text)
		}
	}
	r.FullText = sb.String()
}
