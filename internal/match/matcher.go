// Package match reconciles PHI entities against the offset index,
// producing the mask regions to paint.
package match

import (
	"math"
	"sort"
	"strings"

	"github.com/ssgrummons/RedactifAI/internal/fuzzy"
	"github.com/ssgrummons/RedactifAI/internal/geometry"
	"github.com/ssgrummons/RedactifAI/internal/index"
	"github.com/ssgrummons/RedactifAI/internal/logger"
	"github.com/ssgrummons/RedactifAI/internal/ocr"
	"github.com/ssgrummons/RedactifAI/internal/phi"
)

// MaskRegion is one rectangle to paint, carrying the category and
// confidence of the entity that produced it.
type MaskRegion struct {
	// Page is the 1-based page number
	Page int

	// Box is the region rectangle in absolute pixels
	Box geometry.BoundingBox

	// EntityCategory is the originating entity's category tag
	EntityCategory string

	// Confidence is the originating entity's confidence
	Confidence float64
}

// Config enumerates the matcher's tuning options
type Config struct {
	// ConfidenceThreshold drops entities below it before matching
	ConfidenceThreshold float64

	// PaddingPx is added on all four sides of each produced box,
	// clamped to the page
	PaddingPx float64

	// FuzzyEntityThreshold is the max edit distance for fallback matching
	FuzzyEntityThreshold int

	// MinSimilarityRatio guards the fuzzy-offset stage against
	// coincidental alignment
	MinSimilarityRatio float64

	// MergeAdjacent unions same-line words produced by one entity;
	// regions are never unioned across pages
	MergeAdjacent bool
}

// DefaultConfig returns the matcher defaults
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:  0,
		PaddingPx:            5,
		FuzzyEntityThreshold: 2,
		MinSimilarityRatio:   0.6,
		MergeAdjacent:        true,
	}
}

// Stats summarizes per-entity outcomes of one matching pass
type Stats struct {
	// Matched counts entities that produced at least one region
	Matched int

	// Unmatched counts entities that could not be located
	Unmatched int

	// Filtered counts entities dropped by the confidence threshold;
	// filtering is not reported as failure
	Filtered int

	// UnmatchedEntities lists the entities that could not be located
	UnmatchedEntities []phi.Entity
}

// Matcher locates the OCR words each PHI entity covers and emits one mask
// region per page touched.
type Matcher struct {
	cfg    Config
	logger *logger.Logger
}

// NewMatcher creates an entity matcher with the given configuration
func NewMatcher(cfg Config, log *logger.Logger) *Matcher {
	if log == nil {
		log = logger.Get()
	}
	return &Matcher{cfg: cfg, logger: log}
}

// Match resolves every entity against the offset index. Entities are
// processed in input order; returned regions are ordered by (page, y, x)
// and deduplicated within a 1-pixel tolerance.
func (m *Matcher) Match(result *ocr.Result, offsets []index.WordOffset, entities []phi.Entity) ([]MaskRegion, Stats) {
	var regions []MaskRegion
	var stats Stats

	for _, entity := range entities {
		if entity.Confidence < m.cfg.ConfidenceThreshold {
			stats.Filtered++
			continue
		}

		words := m.resolveEntity(result.FullText, offsets, entity)
		if len(words) == 0 {
			stats.Unmatched++
			stats.UnmatchedEntities = append(stats.UnmatchedEntities, entity)
			m.logger.WithFields("entity", entity.Category, "offset", entity.Offset).Warn("Entity could not be located in OCR output")
			continue
		}

		stats.Matched++
		regions = append(regions, m.regionsFor(result, entity, words)...)
	}

	regions = dedupeRegions(regions)
	sortRegions(regions)
	return regions, stats
}

// resolveEntity runs the exact, fuzzy, then aggressive stages and returns
// the covering OCR words, or nil when the entity stays unmatched.
func (m *Matcher) resolveEntity(fullText string, offsets []index.WordOffset, entity phi.Entity) []ocr.Word {
	// Exact-offset stage: words overlapping the reported span, validated
	// against the entity text.
	words := wordsInSpan(offsets, entity.Offset, entity.End())
	if len(words) > 0 && m.validateWords(words, entity.Text) {
		return words
	}

	// Fuzzy-offset stage: search for the span the detector actually meant.
	if span, ok := m.fuzzySpan(fullText, entity); ok {
		words = wordsInSpan(offsets, span[0], span[1])
		if len(words) > 0 {
			return words
		}
	}

	// Aggressive stage: any literal occurrence, nearest to the reported
	// offset.
	if pos := nearestOccurrence(fullText, entity.Text, entity.Offset); pos >= 0 {
		words = wordsInSpan(offsets, pos, pos+len(entity.Text))
		if len(words) > 0 {
			return words
		}
	}

	return nil
}

// validateWords checks the covering words against the entity text, which
// is authoritative for what the span says
func (m *Matcher) validateWords(words []ocr.Word, entityText string) bool {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	joined := strings.Join(texts, " ")
	return fuzzy.WithinDistance(joined, entityText, m.cfg.FuzzyEntityThreshold)
}

// fuzzySpan slides a window of the entity's text length near the reported
// offset and picks the closest-scoring position, tie-broken toward the
// smaller offset delta.
func (m *Matcher) fuzzySpan(fullText string, entity phi.Entity) ([2]int, bool) {
	textLen := len(entity.Text)
	if textLen == 0 || textLen > len(fullText) {
		return [2]int{}, false
	}

	lo := entity.Offset - entity.Length
	if lo < 0 {
		lo = 0
	}
	hi := entity.Offset + entity.Length
	if hi > len(fullText)-textLen {
		hi = len(fullText) - textLen
	}
	if hi < lo {
		return [2]int{}, false
	}

	bestPos := -1
	bestDist := m.cfg.FuzzyEntityThreshold + 1
	bestDelta := math.MaxInt

	for p := lo; p <= hi; p++ {
		candidate := fullText[p : p+textLen]
		dist := fuzzy.BoundedDistance(entity.Text, candidate, m.cfg.FuzzyEntityThreshold)
		if dist > m.cfg.FuzzyEntityThreshold {
			continue
		}

		delta := p - entity.Offset
		if delta < 0 {
			delta = -delta
		}
		if dist < bestDist || (dist == bestDist && delta < bestDelta) {
			bestDist = dist
			bestDelta = delta
			bestPos = p
		}
	}

	if bestPos < 0 {
		return [2]int{}, false
	}
	if fuzzy.Similarity(entity.Text, fullText[bestPos:bestPos+textLen]) < m.cfg.MinSimilarityRatio {
		return [2]int{}, false
	}

	return [2]int{bestPos, bestPos + textLen}, true
}

// nearestOccurrence finds the literal occurrence of needle closest to the
// given offset, or -1 when absent
func nearestOccurrence(fullText, needle string, offset int) int {
	if needle == "" {
		return -1
	}

	best := -1
	bestDelta := math.MaxInt

	from := 0
	for {
		idx := strings.Index(fullText[from:], needle)
		if idx < 0 {
			break
		}
		pos := from + idx

		delta := pos - offset
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			best = pos
		}
		from = pos + 1
	}

	return best
}

// wordsInSpan returns the words whose resolved ranges overlap the
// half-open span, preserving reading order
func wordsInSpan(offsets []index.WordOffset, start, end int) []ocr.Word {
	var words []ocr.Word
	for _, wo := range offsets {
		if !wo.Resolved {
			continue
		}
		if wo.Start < end && wo.End > start {
			words = append(words, wo.Word)
		}
	}
	return words
}

// regionsFor partitions the chosen words by page, unions each group, and
// applies padding. An entity spanning N pages produces N or more regions;
// regions never span pages.
func (m *Matcher) regionsFor(result *ocr.Result, entity phi.Entity, words []ocr.Word) []MaskRegion {
	byPage := make(map[int][]geometry.BoundingBox)
	var pages []int

	for _, w := range words {
		box := w.Box
		if box.Normalized {
			// Normalized geometry is converted here so padding and later
			// painting are uniformly pixel-based. OCR page dimensions are
			// authoritative.
			pw, ph := result.PageDimensions(box.Page)
			box = box.ToPixels(float64(pw), float64(ph))
		}
		if _, seen := byPage[box.Page]; !seen {
			pages = append(pages, box.Page)
		}
		byPage[box.Page] = append(byPage[box.Page], box)
	}
	sort.Ints(pages)

	var regions []MaskRegion
	for _, pageNum := range pages {
		pageWidth, pageHeight := result.PageDimensions(pageNum)

		var groups [][]geometry.BoundingBox
		if m.cfg.MergeAdjacent {
			groups = lineGroups(byPage[pageNum])
		} else {
			for _, b := range byPage[pageNum] {
				groups = append(groups, []geometry.BoundingBox{b})
			}
		}

		for _, group := range groups {
			union, err := geometry.Union(group)
			if err != nil {
				m.logger.WithError(err).WithPage(pageNum).Warn("Failed to union word boxes, skipping group")
				continue
			}
			padded := union.Inflate(m.cfg.PaddingPx, float64(pageWidth), float64(pageHeight))
			regions = append(regions, MaskRegion{
				Page:           pageNum,
				Box:            padded,
				EntityCategory: entity.Category,
				Confidence:     entity.Confidence,
			})
		}
	}

	return regions
}

// lineGroups clusters boxes whose vertical ranges overlap, so an entity
// wrapped across lines paints one rectangle per line instead of a single
// block swallowing the text between them.
func lineGroups(boxes []geometry.BoundingBox) [][]geometry.BoundingBox {
	var groups [][]geometry.BoundingBox
	var spans [][2]float64

	for _, b := range boxes {
		placed := false
		for i, span := range spans {
			if b.Y < span[1] && b.Bottom() > span[0] {
				groups[i] = append(groups[i], b)
				if b.Y < span[0] {
					spans[i][0] = b.Y
				}
				if b.Bottom() > span[1] {
					spans[i][1] = b.Bottom()
				}
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []geometry.BoundingBox{b})
			spans = append(spans, [2]float64{b.Y, b.Bottom()})
		}
	}

	return groups
}

// dedupeRegions removes regions identical to an earlier one on the same
// page within a 1-pixel tolerance. Overlapping regions from distinct
// entities are kept; overlapping paint is harmless.
func dedupeRegions(regions []MaskRegion) []MaskRegion {
	var kept []MaskRegion
	for _, r := range regions {
		duplicate := false
		for _, k := range kept {
			if r.Page == k.Page && sameRect(r.Box, k.Box) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, r)
		}
	}
	return kept
}

// sameRect reports whether two boxes coincide within one pixel
func sameRect(a, b geometry.BoundingBox) bool {
	return math.Abs(a.X-b.X) <= 1 &&
		math.Abs(a.Y-b.Y) <= 1 &&
		math.Abs(a.Width-b.Width) <= 1 &&
		math.Abs(a.Height-b.Height) <= 1
}

// sortRegions orders regions by (page, y, x)
func sortRegions(regions []MaskRegion) {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Page != regions[j].Page {
			return regions[i].Page < regions[j].Page
		}
		if regions[i].Box.Y != regions[j].Box.Y {
			return regions[i].Box.Y < regions[j].Box.Y
		}
		return regions[i].Box.X < regions[j].Box.X
	})
}
