package phi

import (
	"context"
	"fmt"
	"regexp"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// pattern pairs a compiled regex with its category and a base confidence.
// Confidence reflects how specifically the regex identifies the category:
// structured identifiers score high, ambiguous shapes score lower.
type pattern struct {
	re         *regexp.Regexp
	category   string
	confidence float64
}

// builtinPatterns covers the structured PHI shapes that appear in scanned
// medical documents regardless of layout.
var builtinPatterns = []pattern{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "SSN", 0.95},
	{regexp.MustCompile(`\bMRN[:#\s]*\d{6,10}\b`), "MRN", 0.92},
	{regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "Phone", 0.85},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "Email", 0.95},
	{regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2}\b`), "Date", 0.80},
	{regexp.MustCompile(`\b(?:19|20)\d{2}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])\b`), "Date", 0.80},
	{regexp.MustCompile(`\b\d{1,5}\s+[A-Z][A-Za-z]+\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way)\b`), "Address", 0.75},
	{regexp.MustCompile(`\b(?:Dr|Mr|Mrs|Ms)\.\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`), "Person", 0.70},
}

// PatternDetector implements Provider with local regex matching plus an
// Aho-Corasick dictionary of known surface forms (facility names, provider
// names). It needs no network and serves as the offline fallback backend.
type PatternDetector struct {
	patterns         []pattern
	dictionary       ahocorasick.AhoCorasick
	dictCategories   []string
	hasDictionary    bool
	customCategories map[string]bool
	logger           *logger.Logger
}

// NewPatternDetector creates a local pattern-based PHI detector. The
// dictionary maps known surface forms to their categories and may be nil.
func NewPatternDetector(dictionary map[string]string, customCategories map[string]bool, log *logger.Logger) (*PatternDetector, error) {
	if log == nil {
		log = logger.Get()
	}

	d := &PatternDetector{
		patterns:         builtinPatterns,
		customCategories: customCategories,
		logger:           log,
	}

	if len(dictionary) > 0 {
		terms := make([]string, 0, len(dictionary))
		categories := make([]string, 0, len(dictionary))
		for term, category := range dictionary {
			if term == "" {
				return nil, fmt.Errorf("empty dictionary term")
			}
			terms = append(terms, term)
			categories = append(categories, category)
		}

		builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
			AsciiCaseInsensitive: true,
			MatchOnlyWholeWords:  true,
			MatchKind:            ahocorasick.LeftMostLongestMatch,
		})
		d.dictionary = builder.Build(terms)
		d.dictCategories = categories
		d.hasDictionary = true
	}

	return d, nil
}

// Detect scans the text with every regex pattern and the dictionary
func (d *PatternDetector) Detect(ctx context.Context, fullText string, level MaskingLevel) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[[2]int]bool)
	var entities []Entity

	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(fullText, -1) {
			span := [2]int{loc[0], loc[1]}
			if seen[span] {
				continue
			}
			seen[span] = true
			entities = append(entities, Entity{
				Text:       fullText[loc[0]:loc[1]],
				Category:   p.category,
				Offset:     loc[0],
				Length:     loc[1] - loc[0],
				Confidence: p.confidence,
			})
		}
	}

	if d.hasDictionary {
		for _, m := range d.dictionary.FindAll(fullText) {
			span := [2]int{m.Start(), m.End()}
			if seen[span] {
				continue
			}
			seen[span] = true
			entities = append(entities, Entity{
				Text:       fullText[m.Start():m.End()],
				Category:   d.dictCategories[m.Pattern()],
				Offset:     m.Start(),
				Length:     m.End() - m.Start(),
				Confidence: 0.90,
			})
		}
	}

	sortEntities(entities)
	filtered := FilterByLevel(entities, level, d.customCategories)
	d.logger.WithProvider("pattern").WithFields("detected", len(entities), "after_filter", len(filtered)).Debug("Pattern detection completed")
	return filtered, nil
}

// Name returns the provider name
func (d *PatternDetector) Name() string {
	return "pattern"
}
