package phi

import (
	"context"
	"unicode"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// ChunkingProvider wraps a backend with an input size limit, detecting PHI
// chunk by chunk and rebasing offsets so callers see positions relative to
// the original full text.
type ChunkingProvider struct {
	inner    Provider
	maxChars int
	logger   *logger.Logger
}

// NewChunkingProvider wraps inner so Detect transparently handles texts
// longer than maxChars
func NewChunkingProvider(inner Provider, maxChars int, log *logger.Logger) *ChunkingProvider {
	if log == nil {
		log = logger.Get()
	}
	return &ChunkingProvider{
		inner:    inner,
		maxChars: maxChars,
		logger:   log,
	}
}

// Detect splits the text on whitespace boundaries, runs the backend per
// chunk, and adds each chunk's base offset back onto returned entities
func (c *ChunkingProvider) Detect(ctx context.Context, fullText string, level MaskingLevel) ([]Entity, error) {
	if len(fullText) <= c.maxChars {
		return c.inner.Detect(ctx, fullText, level)
	}

	chunks := splitChunks(fullText, c.maxChars)
	c.logger.WithFields("chars", len(fullText), "chunks", len(chunks)).Debug("Splitting detection input")

	var all []Entity
	for _, chunk := range chunks {
		entities, err := c.inner.Detect(ctx, chunk.text, level)
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			e.Offset += chunk.base
			all = append(all, e)
		}
	}

	sortEntities(all)
	return all, nil
}

// Name returns the wrapped provider's name
func (c *ChunkingProvider) Name() string {
	return c.inner.Name()
}

// chunk is one detection window with its offset into the original text
type chunk struct {
	base int
	text string
}

// splitChunks cuts text into pieces of at most maxChars, breaking on the
// last whitespace before the limit so no word straddles two chunks.
func splitChunks(text string, maxChars int) []chunk {
	if maxChars <= 0 {
		return []chunk{{base: 0, text: text}}
	}

	var chunks []chunk
	base := 0
	for base < len(text) {
		remaining := len(text) - base
		if remaining <= maxChars {
			chunks = append(chunks, chunk{base: base, text: text[base:]})
			break
		}

		cut := base + maxChars
		split := cut
		for split > base {
			if unicode.IsSpace(rune(text[split-1])) {
				break
			}
			split--
		}
		// A single token longer than the limit: cut mid-token rather than loop.
		if split == base {
			split = cut
		}

		chunks = append(chunks, chunk{base: base, text: text[base:split]})
		base = split
	}

	return chunks
}
