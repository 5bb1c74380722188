// Package mask paints mask regions onto page images.
package mask

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ssgrummons/RedactifAI/internal/logger"
	"github.com/ssgrummons/RedactifAI/internal/match"
)

// Config holds painter options
type Config struct {
	// Color is the fill color for mask rectangles (default black)
	Color color.RGBA

	// DebugMode renders semi-transparent rectangles annotated with the
	// entity category instead of opaque fills. Never use in production.
	DebugMode bool
}

// DefaultConfig returns an opaque black production configuration
func DefaultConfig() Config {
	return Config{Color: color.RGBA{A: 255}}
}

// Painter applies mask regions to in-memory page images. Inputs are never
// mutated; Paint returns new images.
type Painter struct {
	cfg    Config
	logger *logger.Logger
}

// NewPainter creates a painter with the given configuration
func NewPainter(cfg Config, log *logger.Logger) *Painter {
	if log == nil {
		log = logger.Get()
	}
	cfg.Color.A = 255
	return &Painter{cfg: cfg, logger: log}
}

// Paint copies each page image and fills every region that targets it.
// Pages are matched to regions by 1-based position. Normalized boxes are
// scaled by the page image's pixel dimensions; box corners are rounded
// outward so the painted rectangle fully covers the mathematical box.
func (p *Painter) Paint(pages []image.Image, regions []match.MaskRegion) []image.Image {
	masked := make([]image.Image, len(pages))

	for i, src := range pages {
		canvas := cloneImage(src)
		pageNum := i + 1

		painted := 0
		for _, region := range regions {
			if region.Page != pageNum {
				continue
			}
			p.paintRegion(canvas, region)
			painted++
		}

		if painted > 0 {
			p.logger.WithPage(pageNum).WithFields("regions", painted).Debug("Painted mask regions")
		}
		masked[i] = canvas
	}

	return masked
}

// paintRegion fills one region on the canvas
func (p *Painter) paintRegion(canvas *image.RGBA, region match.MaskRegion) {
	bounds := canvas.Bounds()

	box := region.Box
	if box.Normalized {
		box = box.ToPixels(float64(bounds.Dx()), float64(bounds.Dy()))
	}

	rect := box.PixelRect().Intersect(bounds)
	if rect.Empty() {
		return
	}

	if p.cfg.DebugMode {
		p.paintDebug(canvas, rect, region.EntityCategory)
		return
	}

	draw.Draw(canvas, rect, image.NewUniform(p.cfg.Color), image.Point{}, draw.Src)
}

// paintDebug overlays a translucent fill and the category label
func (p *Painter) paintDebug(canvas *image.RGBA, rect image.Rectangle, category string) {
	overlay := color.RGBA{R: p.cfg.Color.R, G: p.cfg.Color.G, B: p.cfg.Color.B, A: 96}
	draw.Draw(canvas, rect, image.NewUniform(overlay), image.Point{}, draw.Over)

	if category == "" {
		return
	}

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.RGBA{R: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.I(rect.Min.X + 2),
			Y: fixed.I(rect.Min.Y + basicfont.Face7x13.Ascent),
		},
	}
	drawer.DrawString(category)
}

// cloneImage copies any image into a fresh RGBA canvas
func cloneImage(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}
