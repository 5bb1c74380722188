package deid

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/ssgrummons/RedactifAI/internal/docio"
	"github.com/ssgrummons/RedactifAI/internal/index"
	"github.com/ssgrummons/RedactifAI/internal/logger"
	"github.com/ssgrummons/RedactifAI/internal/mask"
	"github.com/ssgrummons/RedactifAI/internal/match"
	"github.com/ssgrummons/RedactifAI/internal/ocr"
	"github.com/ssgrummons/RedactifAI/internal/phi"
)

// Service runs the de-identification pipeline for one document at a time.
// Providers may be shared across documents; all per-document state is
// allocated per call.
type Service struct {
	logger        *logger.Logger
	loader        *docio.Loader
	ocrProvider   ocr.Provider
	phiProvider   phi.Provider
	matcher       *match.Matcher
	painter       *mask.Painter
	wordThreshold int
	language      string
}

// Config holds the collaborators and tuning for a Service
type Config struct {
	Logger      *logger.Logger
	Loader      *docio.Loader
	OCRProvider ocr.Provider
	PHIProvider phi.Provider

	// Match tunes the entity matcher; zero value selects defaults
	Match match.Config

	// Paint tunes the mask painter
	Paint mask.Config

	// FuzzyWordThreshold tunes word alignment in the offset index; zero
	// selects the default
	FuzzyWordThreshold int

	// Language is passed through to the OCR provider
	Language string
}

// NewService creates a de-identification service
func NewService(cfg *Config) (*Service, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("document loader is required")
	}
	if cfg.OCRProvider == nil {
		return nil, fmt.Errorf("OCR provider is required")
	}
	if cfg.PHIProvider == nil {
		return nil, fmt.Errorf("PHI provider is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	matchCfg := cfg.Match
	if matchCfg == (match.Config{}) {
		matchCfg = match.DefaultConfig()
	}

	wordThreshold := cfg.FuzzyWordThreshold
	if wordThreshold == 0 {
		wordThreshold = index.DefaultFuzzyWordThreshold
	}

	return &Service{
		logger:        log,
		loader:        cfg.Loader,
		ocrProvider:   cfg.OCRProvider,
		phiProvider:   cfg.PHIProvider,
		matcher:       match.NewMatcher(matchCfg, log),
		painter:       mask.NewPainter(cfg.Paint, log),
		wordThreshold: wordThreshold,
		language:      cfg.Language,
	}, nil
}

// NewRenderer builds the page renderer OCR providers use to rasterize a
// document: load, then downsample to the provider's payload budget.
func NewRenderer(loader *docio.Loader, maxOCRSizeMB float64) ocr.PageRenderer {
	return func(ctx context.Context, document []byte, format string) ([]image.Image, error) {
		parsed, err := docio.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		doc, err := loader.Load(document, parsed)
		if err != nil {
			return nil, err
		}
		optimized, err := loader.OptimizeForOCR(doc, maxOCRSizeMB)
		if err != nil {
			return nil, err
		}
		return optimized.Pages, nil
	}
}

// Deidentify produces a masked copy of the document. Unrecoverable
// failures return a non-nil error and a failure-status result with empty
// masked bytes; unmatched entities are counted, not fatal.
func (s *Service) Deidentify(ctx context.Context, document []byte, formatTag string, level phi.MaskingLevel) (*Result, error) {
	start := time.Now()
	docID := uuid.New().String()
	log := s.logger.WithDocumentID(docID)

	format, err := docio.ParseFormat(formatTag)
	if err != nil {
		result := NewResult(docID, format)
		return s.fail(result, log, fmt.Errorf("%w: %v", ErrDocumentLoad, err), start)
	}

	result := NewResult(docID, format)
	log.WithFields("format", format, "size", len(document), "level", level).Info("Starting de-identification")

	// Phase 1: load.
	doc, err := s.loader.Load(document, format)
	if err != nil {
		return s.fail(result, log, fmt.Errorf("%w: %v", ErrDocumentLoad, err), start)
	}
	result.PagesProcessed = doc.PageCount()
	if format == docio.FormatAuto {
		// Sniffed once here so the save below targets the real format.
		detected, err := docio.DetectFormat(document)
		if err != nil {
			return s.fail(result, log, fmt.Errorf("%w: %v", ErrDocumentLoad, err), start)
		}
		format = detected
		result.Format = detected
	}

	if err := s.cancelled(ctx); err != nil {
		return s.fail(result, log, err, start)
	}

	// Phase 2: OCR.
	ocrResult, err := s.ocrProvider.Analyze(ctx, document, string(format), s.language)
	if err != nil {
		if ctx.Err() != nil {
			return s.fail(result, log, fmt.Errorf("%w: %v", ErrCancelled, err), start)
		}
		return s.fail(result, log, fmt.Errorf("%w: %v", ErrOCRProvider, err), start)
	}
	if err := ocrResult.Validate(); err != nil {
		return s.fail(result, log, fmt.Errorf("%w: %v", ErrInvalidGeometry, err), start)
	}

	if err := s.cancelled(ctx); err != nil {
		return s.fail(result, log, err, start)
	}

	// Phase 3: PHI detection over the concatenated text.
	entities, err := s.phiProvider.Detect(ctx, ocrResult.FullText, level)
	if err != nil {
		if ctx.Err() != nil {
			return s.fail(result, log, fmt.Errorf("%w: %v", ErrCancelled, err), start)
		}
		return s.fail(result, log, fmt.Errorf("%w: %v", ErrPHIProvider, err), start)
	}
	result.EntitiesDetected = len(entities)

	if err := s.cancelled(ctx); err != nil {
		return s.fail(result, log, err, start)
	}

	// Phase 4: index build and entity matching, both linear passes.
	offsets := index.NewBuilder(s.wordThreshold, s.logger).Build(ocrResult)
	regions, stats := s.matcher.Match(ocrResult, offsets, entities)

	result.RegionsProduced = len(regions)
	result.EntitiesUnmatched = stats.Unmatched
	result.EntitiesFiltered = stats.Filtered
	for _, e := range stats.UnmatchedEntities {
		result.AddError("entity %q at offset %d could not be matched", e.Category, e.Offset)
	}

	if err := s.cancelled(ctx); err != nil {
		return s.fail(result, log, err, start)
	}

	// Phase 5: paint on the full-resolution pages. Regions are produced in
	// OCR page coordinates, which may be downsampled; rescale first.
	scaled := scaleRegionsToPages(regions, ocrResult, doc)
	result.Regions = scaled
	maskedPages := s.painter.Paint(doc.Pages, scaled)

	masked := &docio.Document{Pages: maskedPages, Metadata: doc.Metadata}
	data, err := s.loader.Save(masked, format)
	if err != nil {
		return s.fail(result, log, fmt.Errorf("%w: %v", ErrDocumentLoad, err), start)
	}

	result.MaskedDocument = data
	result.Status = StatusSuccess
	result.Duration = time.Since(start)

	log.WithFields(
		"pages", result.PagesProcessed,
		"entities", result.EntitiesDetected,
		"regions", result.RegionsProduced,
		"unmatched", result.EntitiesUnmatched,
		"filtered", result.EntitiesFiltered,
		"duration", result.Duration,
	).Info("De-identification completed")

	return result, nil
}

// cancelled converts a context abort into the pipeline's error kind
func (s *Service) cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

// fail finalizes a failed result; partial state is never persisted
func (s *Service) fail(result *Result, log *logger.Logger, err error, start time.Time) (*Result, error) {
	result.Fail(err)
	result.Duration = time.Since(start)
	log.WithError(err).Error("De-identification failed")
	return result, err
}

// scaleRegionsToPages maps regions from OCR page coordinates onto the
// loaded full-resolution pages. OCR dimensions are authoritative for
// normalized coordinates; the loaded page is the paint canvas.
func scaleRegionsToPages(regions []match.MaskRegion, ocrResult *ocr.Result, doc *docio.Document) []match.MaskRegion {
	scaled := make([]match.MaskRegion, 0, len(regions))
	for _, r := range regions {
		if r.Page < 1 || r.Page > doc.PageCount() {
			continue
		}

		bounds := doc.Pages[r.Page-1].Bounds()
		ocrW, ocrH := ocrResult.PageDimensions(r.Page)

		if ocrW > 0 && ocrH > 0 && (ocrW != bounds.Dx() || ocrH != bounds.Dy()) {
			sx := float64(bounds.Dx()) / float64(ocrW)
			sy := float64(bounds.Dy()) / float64(ocrH)
			r.Box.X *= sx
			r.Box.Y *= sy
			r.Box.Width *= sx
			r.Box.Height *= sy
		}
		scaled = append(scaled, r)
	}
	return scaled
}
