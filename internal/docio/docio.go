// Package docio loads and saves multi-page raster documents and prepares
// them for OCR. Supported formats are multi-page TIFF, PNG, and scanned
// PDF.
package docio

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	xdraw "golang.org/x/image/draw"

	"github.com/ssgrummons/RedactifAI/internal/logger"
)

// Format tags the encoding of a document's bytes
type Format string

const (
	// FormatTIFF is a single- or multi-page TIFF container
	FormatTIFF Format = "tiff"

	// FormatPNG is a single-page PNG image
	FormatPNG Format = "png"

	// FormatPDF is a scanned PDF with one raster image per page
	FormatPDF Format = "pdf"

	// FormatAuto sniffs the format from the bytes
	FormatAuto Format = "auto"
)

// ParseFormat converts a format tag string to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "tiff", "tif":
		return FormatTIFF, nil
	case "png":
		return FormatPNG, nil
	case "pdf":
		return FormatPDF, nil
	case "auto", "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unsupported document format %q", s)
	}
}

// DetectFormat sniffs the document format from its bytes
func DetectFormat(data []byte) (Format, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("image/tiff"):
		return FormatTIFF, nil
	case mtype.Is("image/png"):
		return FormatPNG, nil
	case mtype.Is("application/pdf"):
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported document type %s", mtype.String())
	}
}

// Metadata carries format-level properties that must survive a
// load-then-save round trip.
type Metadata struct {
	// DPI is the resolution in dots per inch; zero means unknown
	DPI int

	// Grayscale is true when the source pages carry no color channel
	Grayscale bool

	// Title is the document title when the container has one
	Title string
}

// Document is a loaded multi-page raster document
type Document struct {
	// Pages holds the page images in order
	Pages []image.Image

	// Metadata holds round-trip properties
	Metadata Metadata
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Loader reads and writes documents in the supported formats
type Loader struct {
	logger *logger.Logger

	// renderDPI is the target resolution when rasterizing PDF pages
	renderDPI int
}

// NewLoader creates a document loader. renderDPI selects the PDF
// rasterization resolution; zero selects 300 DPI.
func NewLoader(renderDPI int, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Get()
	}
	if renderDPI <= 0 {
		renderDPI = 300
	}
	return &Loader{logger: log, renderDPI: renderDPI}
}

// Load decodes document bytes into page images plus metadata. FormatAuto
// sniffs the format first.
func (l *Loader) Load(data []byte, format Format) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	if format == FormatAuto {
		detected, err := DetectFormat(data)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	switch format {
	case FormatTIFF:
		return l.loadTIFF(data)
	case FormatPNG:
		return l.loadPNG(data)
	case FormatPDF:
		return l.loadPDF(data)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

// Save encodes a document back into the given format
func (l *Loader) Save(doc *Document, format Format) ([]byte, error) {
	if doc.PageCount() == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	switch format {
	case FormatTIFF:
		return l.saveTIFF(doc)
	case FormatPNG:
		return l.savePNG(doc)
	case FormatPDF:
		return l.savePDF(doc)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

// OptimizeForOCR downsamples pages until the document's encoded payload
// fits within maxSizeMB, trading resolution for provider size limits.
// The original document is not modified.
func (l *Loader) OptimizeForOCR(doc *Document, maxSizeMB float64) (*Document, error) {
	if maxSizeMB <= 0 {
		return nil, fmt.Errorf("max OCR size must be positive, got %g", maxSizeMB)
	}

	budget := int64(maxSizeMB * 1024 * 1024)
	pages := doc.Pages

	for attempt := 0; attempt < 4; attempt++ {
		total, err := encodedSize(pages)
		if err != nil {
			return nil, err
		}
		if total <= budget {
			break
		}

		scale := math.Sqrt(float64(budget) / float64(total))
		if scale > 0.9 {
			scale = 0.9
		}
		l.logger.WithFields("bytes", total, "budget", budget, "scale", scale).Debug("Downsampling pages for OCR")
		pages = scalePages(pages, scale)
	}

	return &Document{Pages: pages, Metadata: doc.Metadata}, nil
}

// encodedSize sums the PNG-encoded size of all pages
func encodedSize(pages []image.Image) (int64, error) {
	var total int64
	for i, page := range pages {
		data, err := encodePagePNG(page)
		if err != nil {
			return 0, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		total += int64(len(data))
	}
	return total, nil
}

// scalePages resamples every page by the given factor
func scalePages(pages []image.Image, scale float64) []image.Image {
	scaled := make([]image.Image, len(pages))
	for i, page := range pages {
		bounds := page.Bounds()
		w := int(float64(bounds.Dx()) * scale)
		h := int(float64(bounds.Dy()) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}

		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), page, bounds, xdraw.Over, nil)
		scaled[i] = dst
	}
	return scaled
}

// toGray converts an image to 8-bit grayscale
func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return dst
}

// isGrayscale reports whether the image carries no color information
func isGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}
