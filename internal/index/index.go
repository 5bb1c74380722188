// Package index aligns OCR words to character ranges in the concatenated
// document text, producing the offset index the entity matcher consumes.
package index

import (
	"github.com/ssgrummons/RedactifAI/internal/fuzzy"
	"github.com/ssgrummons/RedactifAI/internal/logger"
	"github.com/ssgrummons/RedactifAI/internal/ocr"
)

// DefaultFuzzyWordThreshold is the default edit-distance tolerance for
// aligning a single word against the full text.
const DefaultFuzzyWordThreshold = 2

// WordOffset maps one OCR word to its half-open [Start, End) range in the
// full text. Unresolved words carry Start == End at the cursor position
// where alignment failed.
type WordOffset struct {
	// Start is the inclusive start offset into the full text
	Start int

	// End is the exclusive end offset into the full text
	End int

	// Word is the OCR word this entry aligns
	Word ocr.Word

	// Resolved is false when no alignment was found for the word
	Resolved bool
}

// Builder walks the full text once, aligning each word in page and
// reading order.
type Builder struct {
	fuzzyThreshold int
	logger         *logger.Logger
}

// NewBuilder creates an offset index builder. A negative threshold
// selects the default.
func NewBuilder(fuzzyThreshold int, log *logger.Logger) *Builder {
	if fuzzyThreshold < 0 {
		fuzzyThreshold = DefaultFuzzyWordThreshold
	}
	if log == nil {
		log = logger.Get()
	}
	return &Builder{
		fuzzyThreshold: fuzzyThreshold,
		logger:         log,
	}
}

// Build produces one WordOffset per word, in the same page and reading
// order as the input. Words that cannot be located are marked unresolved
// and the walk continues; the build never reorders, drops, or aborts.
func (b *Builder) Build(result *ocr.Result) []WordOffset {
	fullText := result.FullText
	words := result.Words()
	offsets := make([]WordOffset, 0, len(words))

	cursor := 0
	unresolved := 0

	for _, word := range words {
		cursor = skipWhitespace(fullText, cursor)

		if entry, ok := matchExact(fullText, cursor, word); ok {
			offsets = append(offsets, entry)
			cursor = entry.End
			continue
		}

		if entry, ok := matchWhitespaceNormalized(fullText, cursor, word); ok {
			offsets = append(offsets, entry)
			cursor = entry.End
			continue
		}

		if entry, ok := b.matchFuzzy(fullText, cursor, word); ok {
			offsets = append(offsets, entry)
			cursor = entry.End
			continue
		}

		offsets = append(offsets, WordOffset{Start: cursor, End: cursor, Word: word})
		unresolved++
	}

	if unresolved > 0 {
		b.logger.WithFields("words", len(words), "unresolved", unresolved).Warn("Some words could not be aligned to the full text")
	}

	return offsets
}

// isWhitespaceLike reports whether the byte at position i starts a
// whitespace-like character (space, tab, newline, carriage return, form
// feed, or U+00A0).
func isWhitespaceLike(s string, i int) (bool, int) {
	switch s[i] {
	case ' ', '\t', '\n', '\r', '\f':
		return true, 1
	case 0xC2:
		// U+00A0 in UTF-8 is 0xC2 0xA0.
		if i+1 < len(s) && s[i+1] == 0xA0 {
			return true, 2
		}
	}
	return false, 0
}

// skipWhitespace advances past whitespace-like characters
func skipWhitespace(s string, i int) int {
	for i < len(s) {
		ws, n := isWhitespaceLike(s, i)
		if !ws {
			break
		}
		i += n
	}
	return i
}

// matchExact tries a byte-for-byte match at the cursor
func matchExact(fullText string, cursor int, word ocr.Word) (WordOffset, bool) {
	end := cursor + len(word.Text)
	if end > len(fullText) {
		return WordOffset{}, false
	}
	if fullText[cursor:end] != word.Text {
		return WordOffset{}, false
	}
	return WordOffset{Start: cursor, End: end, Word: word, Resolved: true}, true
}

// matchWhitespaceNormalized compares the word against the full text from
// the cursor while collapsing whitespace runs in both to a single space,
// recording the span actually consumed.
func matchWhitespaceNormalized(fullText string, cursor int, word ocr.Word) (WordOffset, bool) {
	text := word.Text
	i, j := 0, cursor

	for i < len(text) {
		wsText, _ := isWhitespaceLike(text, i)
		if wsText {
			if j >= len(fullText) {
				return WordOffset{}, false
			}
			wsFull, _ := isWhitespaceLike(fullText, j)
			if !wsFull {
				return WordOffset{}, false
			}
			for i < len(text) {
				ws, n := isWhitespaceLike(text, i)
				if !ws {
					break
				}
				i += n
			}
			j = skipWhitespace(fullText, j)
			continue
		}

		if j >= len(fullText) || fullText[j] != text[i] {
			return WordOffset{}, false
		}
		i++
		j++
	}

	if j == cursor {
		return WordOffset{}, false
	}
	return WordOffset{Start: cursor, End: j, Word: word, Resolved: true}, true
}

// matchFuzzy searches a bounded forward window for the position whose
// same-length substring is closest to the word in edit distance.
func (b *Builder) matchFuzzy(fullText string, cursor int, word ocr.Word) (WordOffset, bool) {
	wordLen := len(word.Text)
	if wordLen == 0 || cursor >= len(fullText) {
		return WordOffset{}, false
	}

	threshold := b.fuzzyThreshold
	if half := wordLen / 2; half < threshold {
		threshold = half
	}

	window := 2 * wordLen
	if window < 16 {
		window = 16
	}

	bestPos := -1
	bestDist := threshold + 1

	limit := cursor + window
	if limit > len(fullText) {
		limit = len(fullText)
	}

	for p := cursor; p < limit; p++ {
		end := p + wordLen
		if end > len(fullText) {
			end = len(fullText)
		}
		dist := fuzzy.BoundedDistance(word.Text, fullText[p:end], bestDist-1)
		if dist < bestDist {
			bestDist = dist
			bestPos = p
			if bestDist == 0 {
				break
			}
		}
	}

	if bestPos < 0 || bestDist > threshold {
		return WordOffset{}, false
	}

	end := bestPos + wordLen
	if end > len(fullText) {
		end = len(fullText)
	}
	return WordOffset{Start: bestPos, End: end, Word: word, Resolved: true}, true
}
