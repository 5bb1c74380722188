// Package phi defines the PHI entity model and the detection provider
// interface every PHI backend must satisfy.
package phi

import (
	"fmt"
	"strings"
)

// MaskingLevel selects which PHI categories a detection provider emits.
type MaskingLevel string

const (
	// LevelSafeHarbor emits every detected category
	LevelSafeHarbor MaskingLevel = "SAFE_HARBOR"

	// LevelLimitedDataset suppresses provider and organization categories
	LevelLimitedDataset MaskingLevel = "LIMITED_DATASET"

	// LevelCustom emits only categories in a caller-supplied set
	LevelCustom MaskingLevel = "CUSTOM"
)

// ParseMaskingLevel converts a string to a MaskingLevel
func ParseMaskingLevel(s string) (MaskingLevel, error) {
	switch strings.ToUpper(s) {
	case string(LevelSafeHarbor):
		return LevelSafeHarbor, nil
	case string(LevelLimitedDataset):
		return LevelLimitedDataset, nil
	case string(LevelCustom):
		return LevelCustom, nil
	default:
		return "", fmt.Errorf("invalid masking level %q", s)
	}
}

// Entity is one detected PHI span. Offset and Length address the
// document's concatenated full text; Text is authoritative for what the
// span says, Offset/Length for where it sits.
type Entity struct {
	// Text is the detected span text
	Text string

	// Category is a free-form tag (e.g. "Person", "Date", "SSN")
	Category string

	// Subcategory optionally refines the category
	Subcategory string

	// Offset is the character offset into the full text (>= 0)
	Offset int

	// Length is the span length in characters (> 0)
	Length int

	// Confidence is the detection confidence in [0,1]
	Confidence float64
}

// End returns the exclusive end offset of the entity span
func (e Entity) End() int {
	return e.Offset + e.Length
}

// Validate checks the entity's structural invariants
func (e Entity) Validate() error {
	if e.Text == "" {
		return fmt.Errorf("entity has empty text")
	}
	if e.Offset < 0 {
		return fmt.Errorf("entity %q has negative offset %d", e.Text, e.Offset)
	}
	if e.Length <= 0 {
		return fmt.Errorf("entity %q has non-positive length %d", e.Text, e.Length)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("entity %q has confidence %g outside [0,1]", e.Text, e.Confidence)
	}
	return nil
}

// limitedDatasetSuppressed holds category tags a LIMITED_DATASET detection
// withholds. Matching is case-insensitive; categories are otherwise opaque.
var limitedDatasetSuppressed = map[string]bool{
	"provider":           true,
	"doctor":             true,
	"physician":          true,
	"organization":       true,
	"hospital":           true,
	"facility":           true,
	"healthcareprovider": true,
}

// FilterByLevel applies masking-level category filtering. customCategories
// is consulted only for LevelCustom and is matched case-insensitively.
func FilterByLevel(entities []Entity, level MaskingLevel, customCategories map[string]bool) []Entity {
	if level == LevelSafeHarbor {
		return entities
	}

	filtered := make([]Entity, 0, len(entities))
	for _, e := range entities {
		key := strings.ToLower(e.Category)
		switch level {
		case LevelLimitedDataset:
			if !limitedDatasetSuppressed[key] {
				filtered = append(filtered, e)
			}
		case LevelCustom:
			if customCategories[key] {
				filtered = append(filtered, e)
			}
		}
	}
	return filtered
}

// NormalizeCategorySet lowercases a category list into a lookup set
func NormalizeCategorySet(categories []string) map[string]bool {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c != "" {
			set[strings.ToLower(c)] = true
		}
	}
	return set
}
