package docio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// loadPNG decodes a single-page PNG document
func (l *Loader) loadPNG(data []byte) (*Document, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}

	doc := &Document{
		Pages:    []image.Image{img},
		Metadata: Metadata{Grayscale: isGrayscale(img)},
	}
	l.logger.WithFields("width", img.Bounds().Dx(), "height", img.Bounds().Dy()).Debug("Loaded PNG document")
	return doc, nil
}

// savePNG encodes the document as PNG; the format holds one page only
func (l *Loader) savePNG(doc *Document) ([]byte, error) {
	if doc.PageCount() != 1 {
		return nil, fmt.Errorf("PNG supports a single page, document has %d", doc.PageCount())
	}

	img := doc.Pages[0]
	if doc.Metadata.Grayscale {
		img = toGray(img)
	}

	return encodePagePNG(img)
}

// encodePagePNG serializes one page image as PNG
func encodePagePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
