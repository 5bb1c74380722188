package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ssgrummons/RedactifAI/internal/geometry"
	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// PageRenderer turns an encoded document into its ordered page images.
// Wired from the document I/O layer so this package stays codec-agnostic.
type PageRenderer func(ctx context.Context, document []byte, format string) ([]image.Image, error)

// Processor implements Provider on top of a VisionClient, running the
// backend once per page and assembling the normalized result.
type Processor struct {
	logger      *logger.Logger
	client      VisionClient
	model       string
	renderPages PageRenderer
	limiter     *rate.Limiter
}

// ProcessorConfig holds configuration for the OCR processor
type ProcessorConfig struct {
	Logger      *logger.Logger
	Client      VisionClient
	Model       string
	RenderPages PageRenderer

	// RequestsPerSecond paces backend calls; zero disables pacing
	RequestsPerSecond float64
}

// NewProcessor creates an OCR processor backed by the given vision client
func NewProcessor(cfg *ProcessorConfig) (*Processor, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("vision client is required")
	}
	if cfg.RenderPages == nil {
		return nil, fmt.Errorf("page renderer is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel(ProviderType(cfg.Client.Name()))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Processor{
		logger:      log,
		client:      cfg.Client,
		model:       model,
		renderPages: cfg.RenderPages,
		limiter:     limiter,
	}, nil
}

// Name returns the backing vision client's name
func (p *Processor) Name() string {
	return p.client.Name()
}

// Analyze renders the document's pages and runs the vision backend over
// each, producing the normalized result
func (p *Processor) Analyze(ctx context.Context, document []byte, format string, language string) (*Result, error) {
	start := time.Now()
	log := p.logger.WithProvider(p.client.Name())
	log.WithFields("format", format, "size", len(document), "language", language).Debug("Starting OCR analysis")

	pages, err := p.renderPages(ctx, document, format)
	if err != nil {
		return nil, fmt.Errorf("failed to render document pages: %w", err)
	}

	result := &Result{Pages: make([]Page, 0, len(pages))}
	pageTexts := make([]string, 0, len(pages))
	allTexts := true

	for i, img := range pages {
		pageNum := i + 1

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		pngData, err := encodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", pageNum, err)
		}

		rec, err := p.client.RecognizePage(ctx, p.model, pngData)
		if err != nil {
			return nil, fmt.Errorf("page %d recognition failed: %w", pageNum, err)
		}

		page := buildPage(pageNum, img.Bounds(), rec, log)
		result.Pages = append(result.Pages, page)

		if rec.Text == "" && len(rec.Words) > 0 {
			allTexts = false
		}
		pageTexts = append(pageTexts, rec.Text)

		log.WithPage(pageNum).WithFields("words", len(page.Words)).Debug("Page recognized")
	}

	if allTexts {
		result.FullText = strings.Join(pageTexts, "\n")
	} else {
		result.BuildFullText()
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("provider returned invalid geometry: %w", err)
	}

	log.WithFields(
		"pages", len(result.Pages),
		"words", result.WordCount(),
		"duration", time.Since(start),
	).Info("OCR analysis completed")

	return result, nil
}

// HealthCheck verifies the backing vision client is reachable
func (p *Processor) HealthCheck(ctx context.Context) error {
	if err := p.client.HealthCheck(ctx, p.model); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.client.Name(), err)
	}
	return nil
}

// buildPage converts raw recognition output into a normalized page
func buildPage(pageNum int, bounds image.Rectangle, rec *PageRecognition, log *logger.Logger) Page {
	width, height := rec.Width, rec.Height
	if width <= 0 || height <= 0 {
		// Backend did not report dimensions; the rendered image is the
		// page, so its bounds are correct.
		width = bounds.Dx()
		height = bounds.Dy()
	}

	page := Page{Number: pageNum, Width: width, Height: height}

	for _, rw := range rec.Words {
		if rw.Text == "" {
			continue
		}

		box, ok := wordBox(pageNum, rw, rec.Normalized)
		if !ok {
			log.WithPage(pageNum).WithFields("word", rw.Text).Warn("Word has no usable geometry, skipping")
			continue
		}

		confidence := rw.Confidence
		if confidence <= 0 {
			confidence = 0.8
		}
		if confidence > 1 {
			confidence = 1
		}

		page.Words = append(page.Words, Word{
			Text:       rw.Text,
			Confidence: confidence,
			Box:        box,
		})
	}

	return page
}

// wordBox derives a bounding box from either bbox or polygon geometry
func wordBox(pageNum int, rw RecognizedWord, normalized bool) (geometry.BoundingBox, bool) {
	if len(rw.BBox) >= 4 {
		box := geometry.BoundingBox{
			Page:       pageNum,
			X:          rw.BBox[0],
			Y:          rw.BBox[1],
			Width:      rw.BBox[2],
			Height:     rw.BBox[3],
			Normalized: normalized,
		}
		return box, true
	}

	if len(rw.Polygon) > 0 {
		points := make([]geometry.Point, 0, len(rw.Polygon))
		for _, v := range rw.Polygon {
			if len(v) < 2 {
				return geometry.BoundingBox{}, false
			}
			points = append(points, geometry.Point{X: v[0], Y: v[1]})
		}
		box, err := geometry.FromPolygon(pageNum, points, normalized)
		if err != nil {
			return geometry.BoundingBox{}, false
		}
		return box, true
	}

	return geometry.BoundingBox{}, false
}

// encodePNG serializes a page image for transport to a vision backend
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
