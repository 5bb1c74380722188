// Package geometry provides axis-aligned bounding box primitives for page-local coordinates.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// BoundingBox is an axis-aligned rectangle in page-local coordinates.
// Coordinates are either absolute pixels or normalized to [0,1]; the
// Normalized flag distinguishes the two. Page numbers are 1-based.
type BoundingBox struct {
	// Page is the 1-based page number the box belongs to
	Page int

	// X is the left coordinate
	X float64

	// Y is the top coordinate
	Y float64

	// Width is the horizontal extent (non-negative)
	Width float64

	// Height is the vertical extent (non-negative)
	Height float64

	// Normalized is true when coordinates are in [0,1] page-relative units
	Normalized bool
}

// NewBox creates an absolute-pixel bounding box on the given page
func NewBox(page int, x, y, width, height float64) BoundingBox {
	return BoundingBox{Page: page, X: x, Y: y, Width: width, Height: height}
}

// NewNormalizedBox creates a [0,1]-relative bounding box on the given page
func NewNormalizedBox(page int, x, y, width, height float64) BoundingBox {
	return BoundingBox{Page: page, X: x, Y: y, Width: width, Height: height, Normalized: true}
}

// Validate checks that the box has a positive page number and finite,
// non-negative dimensions
func (b BoundingBox) Validate() error {
	if b.Page < 1 {
		return fmt.Errorf("page number must be >= 1, got %d", b.Page)
	}
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate in box on page %d", b.Page)
		}
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("negative dimensions %gx%g on page %d", b.Width, b.Height, b.Page)
	}
	return nil
}

// Right returns the right edge coordinate
func (b BoundingBox) Right() float64 {
	return b.X + b.Width
}

// Bottom returns the bottom edge coordinate
func (b BoundingBox) Bottom() float64 {
	return b.Y + b.Height
}

// Area returns the area of the box
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Overlaps reports whether two boxes on the same page share any interior.
// Boxes that merely touch along an edge do not overlap.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	if b.Page != other.Page {
		return false
	}
	return b.X < other.Right() &&
		b.Right() > other.X &&
		b.Y < other.Bottom() &&
		b.Bottom() > other.Y
}

// Union returns the smallest box enclosing all inputs. All boxes must be
// on the same page and in the same coordinate convention.
func Union(boxes []BoundingBox) (BoundingBox, error) {
	if len(boxes) == 0 {
		return BoundingBox{}, fmt.Errorf("union of zero boxes")
	}

	first := boxes[0]
	minX, minY := first.X, first.Y
	maxX, maxY := first.Right(), first.Bottom()

	for _, b := range boxes[1:] {
		if b.Page != first.Page {
			return BoundingBox{}, fmt.Errorf("union across pages %d and %d", first.Page, b.Page)
		}
		if b.Normalized != first.Normalized {
			return BoundingBox{}, fmt.Errorf("union of mixed normalized and pixel boxes on page %d", first.Page)
		}
		minX = math.Min(minX, b.X)
		minY = math.Min(minY, b.Y)
		maxX = math.Max(maxX, b.Right())
		maxY = math.Max(maxY, b.Bottom())
	}

	return BoundingBox{
		Page:       first.Page,
		X:          minX,
		Y:          minY,
		Width:      maxX - minX,
		Height:     maxY - minY,
		Normalized: first.Normalized,
	}, nil
}

// Inflate grows the box by px on all four sides. When positive page
// dimensions are supplied the result is clamped to [0, pageWidth] x
// [0, pageHeight]. px is applied in the box's own units and the Normalized
// flag is carried over unchanged, so a normalized box is not converted.
func (b BoundingBox) Inflate(px float64, pageWidth, pageHeight float64) BoundingBox {
	x := b.X - px
	y := b.Y - px
	right := b.Right() + px
	bottom := b.Bottom() + px

	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if pageWidth > 0 && right > pageWidth {
		right = pageWidth
	}
	if pageHeight > 0 && bottom > pageHeight {
		bottom = pageHeight
	}

	return BoundingBox{
		Page:       b.Page,
		X:          x,
		Y:          y,
		Width:      math.Max(0, right-x),
		Height:     math.Max(0, bottom-y),
		Normalized: b.Normalized,
	}
}

// ToPixels converts a normalized box to absolute pixels using the page's
// pixel dimensions. Pixel boxes are returned unchanged.
func (b BoundingBox) ToPixels(pageWidth, pageHeight float64) BoundingBox {
	if !b.Normalized {
		return b
	}
	return BoundingBox{
		Page:   b.Page,
		X:      b.X * pageWidth,
		Y:      b.Y * pageHeight,
		Width:  b.Width * pageWidth,
		Height: b.Height * pageHeight,
	}
}

// PixelRect rounds the box outward to integer pixels so the resulting
// rectangle fully covers the mathematical box.
func (b BoundingBox) PixelRect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X)),
		int(math.Floor(b.Y)),
		int(math.Ceil(b.Right())),
		int(math.Ceil(b.Bottom())),
	)
}

// Point is a single vertex of a provider-supplied polygon
type Point struct {
	X float64
	Y float64
}

// FromPolygon returns the axis-aligned box enclosing the polygon. Used for
// providers that report word geometry as arbitrary quadrilaterals.
func FromPolygon(page int, points []Point, normalized bool) (BoundingBox, error) {
	if len(points) == 0 {
		return BoundingBox{}, fmt.Errorf("polygon with zero points")
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	return BoundingBox{
		Page:       page,
		X:          minX,
		Y:          minY,
		Width:      maxX - minX,
		Height:     maxY - minY,
		Normalized: normalized,
	}, nil
}
