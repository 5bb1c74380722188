package docio

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// markedPage builds a white page with a black square at [30,20)-[60,50),
// so rendered output can be checked for content rather than exact pixels.
func markedPage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= 30 && x < 60 && y >= 20 && y < 50 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func TestPDF_SaveProducesReadableStructure(t *testing.T) {
	loader := NewLoader(72, nil)

	doc := &Document{
		Pages:    []image.Image{markedPage(120, 90), markedPage(120, 90)},
		Metadata: Metadata{DPI: 72, Title: "Discharge Summary"},
	}

	data, err := loader.Save(doc, FormatPDF)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Save produced empty bytes")
	}

	format, err := DetectFormat(data)
	if err != nil || format != FormatPDF {
		t.Errorf("DetectFormat = %q, %v, want pdf", format, err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		t.Fatalf("saved PDF is not readable: %v", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		t.Fatalf("failed to determine page count: %v", err)
	}
	if pdfCtx.PageCount != 2 {
		t.Errorf("page count = %d, want 2", pdfCtx.PageCount)
	}
}

func TestPDF_RoundTrip(t *testing.T) {
	// DPI 72 makes PDF points equal pixels, so save and re-render agree
	// on page dimensions.
	loader := NewLoader(72, nil)

	doc := &Document{
		Pages:    []image.Image{markedPage(120, 90), markedPage(120, 90)},
		Metadata: Metadata{DPI: 72, Title: "Discharge Summary"},
	}

	data, err := loader.Save(doc, FormatPDF)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reloaded, err := loader.Load(data, FormatPDF)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if reloaded.PageCount() != 2 {
		t.Fatalf("page count = %d, want 2", reloaded.PageCount())
	}
	if reloaded.Metadata.Title != "Discharge Summary" {
		t.Errorf("title = %q after round trip", reloaded.Metadata.Title)
	}
	if reloaded.Metadata.DPI != 72 {
		t.Errorf("DPI = %d after round trip, want the render DPI 72", reloaded.Metadata.DPI)
	}

	for i, page := range reloaded.Pages {
		bounds := page.Bounds()
		if abs(bounds.Dx()-120) > 2 || abs(bounds.Dy()-90) > 2 {
			t.Errorf("page %d rendered at %dx%d, want ~120x90", i+1, bounds.Dx(), bounds.Dy())
		}

		// Rendering may resample, so check content, not exact pixels:
		// dark inside the square, light outside it.
		sx := float64(bounds.Dx()) / 120.0
		sy := float64(bounds.Dy()) / 90.0
		inR, _, _, _ := page.At(bounds.Min.X+int(45*sx), bounds.Min.Y+int(35*sy)).RGBA()
		outR, _, _, _ := page.At(bounds.Min.X+int(90*sx), bounds.Min.Y+int(70*sy)).RGBA()

		if inR > 0x4000 {
			t.Errorf("page %d: pixel inside the black square rendered light (r=%d)", i+1, inR)
		}
		if outR < 0xC000 {
			t.Errorf("page %d: background pixel rendered dark (r=%d)", i+1, outR)
		}
	}
}

func TestPDF_LoadInvalid(t *testing.T) {
	loader := NewLoader(0, nil)

	if _, err := loader.Load([]byte("not a pdf"), FormatPDF); err == nil {
		t.Error("expected error for non-PDF bytes")
	}
	if _, err := loader.Load([]byte("%PDF-1.4\ngarbage"), FormatPDF); err == nil {
		t.Error("expected error for truncated PDF")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
