package deid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ssgrummons/RedactifAI/internal/docio"
	"github.com/ssgrummons/RedactifAI/internal/geometry"
	"github.com/ssgrummons/RedactifAI/internal/match"
	"github.com/ssgrummons/RedactifAI/internal/ocr"
	"github.com/ssgrummons/RedactifAI/internal/phi"
)

type mockOCR struct {
	result *ocr.Result
	err    error
}

func (m *mockOCR) Analyze(ctx context.Context, document []byte, format string, language string) (*ocr.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockOCR) Name() string { return "mock" }

type mockPHI struct {
	entities []phi.Entity
	err      error
	gotText  string
	gotLevel phi.MaskingLevel
}

func (m *mockPHI) Detect(ctx context.Context, fullText string, level phi.MaskingLevel) ([]phi.Entity, error) {
	m.gotText = fullText
	m.gotLevel = level
	if m.err != nil {
		return nil, m.err
	}
	return m.entities, nil
}

func (m *mockPHI) Name() string { return "mock" }

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func singleWordOCR(pageW, pageH int) *ocr.Result {
	return &ocr.Result{
		FullText: "John",
		Pages: []ocr.Page{{
			Number: 1, Width: pageW, Height: pageH,
			Words: []ocr.Word{{
				Text:       "John",
				Confidence: 0.99,
				Box:        geometry.NewBox(1, 100, 200, 50, 20),
			}},
		}},
	}
}

func newService(t *testing.T, ocrProv ocr.Provider, phiProv phi.Provider, mutate func(*Config)) *Service {
	t.Helper()
	cfg := &Config{
		Loader:      docio.NewLoader(0, nil),
		OCRProvider: ocrProv,
		PHIProvider: phiProv,
	}
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestDeidentify_Success(t *testing.T) {
	doc := whitePNG(t, 1000, 1000)
	phiProv := &mockPHI{entities: []phi.Entity{
		{Text: "John", Category: "Person", Offset: 0, Length: 4, Confidence: 0.95},
	}}

	svc := newService(t, &mockOCR{result: singleWordOCR(1000, 1000)}, phiProv, nil)

	result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
	if err != nil {
		t.Fatalf("Deidentify returned error: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
	if result.PagesProcessed != 1 || result.EntitiesDetected != 1 || result.RegionsProduced != 1 {
		t.Errorf("counts = %+v", result)
	}
	if phiProv.gotText != "John" {
		t.Errorf("PHI provider received %q, want full text", phiProv.gotText)
	}
	if phiProv.gotLevel != phi.LevelSafeHarbor {
		t.Errorf("PHI provider received level %q", phiProv.gotLevel)
	}

	// The masked output must be fully opaque over the padded word box.
	masked, err := png.Decode(bytes.NewReader(result.MaskedDocument))
	if err != nil {
		t.Fatalf("masked output is not a valid PNG: %v", err)
	}
	for _, pt := range []image.Point{{95, 195}, {154, 224}, {125, 210}} {
		r, g, b, a := masked.At(pt.X, pt.Y).RGBA()
		if r != 0 || g != 0 || b != 0 || a != 0xffff {
			t.Errorf("pixel %v = (%d,%d,%d,%d), want opaque black", pt, r, g, b, a)
		}
	}
	if r, _, _, _ := masked.At(500, 500).RGBA(); r != 0xffff {
		t.Error("pixel far from region was painted")
	}
}

func TestDeidentify_ZeroEntitiesLeavesPixelsUntouched(t *testing.T) {
	doc := whitePNG(t, 64, 64)

	ocrResult := &ocr.Result{
		FullText: "nothing sensitive",
		Pages: []ocr.Page{{
			Number: 1, Width: 64, Height: 64,
			Words: []ocr.Word{
				{Text: "nothing", Confidence: 0.9, Box: geometry.NewBox(1, 1, 1, 20, 8)},
				{Text: "sensitive", Confidence: 0.9, Box: geometry.NewBox(1, 24, 1, 30, 8)},
			},
		}},
	}

	svc := newService(t, &mockOCR{result: ocrResult}, &mockPHI{}, nil)

	result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
	if err != nil {
		t.Fatalf("Deidentify returned error: %v", err)
	}

	if result.RegionsProduced != 0 {
		t.Errorf("regions = %d, want 0", result.RegionsProduced)
	}

	original, _ := png.Decode(bytes.NewReader(doc))
	masked, err := png.Decode(bytes.NewReader(result.MaskedDocument))
	if err != nil {
		t.Fatalf("masked output is not a valid PNG: %v", err)
	}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			or, og, ob, _ := original.At(x, y).RGBA()
			mr, mg, mb, _ := masked.At(x, y).RGBA()
			if or != mr || og != mg || ob != mb {
				t.Fatalf("pixel (%d,%d) changed with zero regions", x, y)
			}
		}
	}
}

func TestDeidentify_UnmatchedEntityStillSucceeds(t *testing.T) {
	doc := whitePNG(t, 200, 200)

	ocrResult := &ocr.Result{
		FullText: "Hello",
		Pages: []ocr.Page{{
			Number: 1, Width: 200, Height: 200,
			Words: []ocr.Word{{Text: "Hello", Confidence: 0.9, Box: geometry.NewBox(1, 10, 10, 50, 20)}},
		}},
	}
	phiProv := &mockPHI{entities: []phi.Entity{
		{Text: "Goodbye", Category: "Person", Offset: 0, Length: 7, Confidence: 0.9},
	}}

	svc := newService(t, &mockOCR{result: ocrResult}, phiProv, nil)

	result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
	if err != nil {
		t.Fatalf("Deidentify returned error: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("status = %s, want success despite unmatched entity", result.Status)
	}
	if result.EntitiesUnmatched != 1 || result.RegionsProduced != 0 {
		t.Errorf("unmatched = %d regions = %d", result.EntitiesUnmatched, result.RegionsProduced)
	}
	if len(result.Errors) == 0 {
		t.Error("unmatched entity should appear in the error list")
	}
	if len(result.MaskedDocument) == 0 {
		t.Error("document should still be produced")
	}
}

func TestDeidentify_EmptyOCR(t *testing.T) {
	doc := whitePNG(t, 100, 100)

	ocrResult := &ocr.Result{FullText: "", Pages: []ocr.Page{{Number: 1, Width: 100, Height: 100}}}
	phiProv := &mockPHI{entities: []phi.Entity{
		{Text: "John", Category: "Person", Offset: 0, Length: 4, Confidence: 0.9},
		{Text: "Smith", Category: "Person", Offset: 5, Length: 5, Confidence: 0.9},
	}}

	svc := newService(t, &mockOCR{result: ocrResult}, phiProv, nil)

	result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
	if err != nil {
		t.Fatalf("Deidentify returned error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("status = %s, want success", result.Status)
	}
	if result.EntitiesUnmatched != 2 {
		t.Errorf("unmatched = %d, want all entities", result.EntitiesUnmatched)
	}
}

func TestDeidentify_ConfidenceFilter(t *testing.T) {
	doc := whitePNG(t, 1000, 1000)
	phiProv := &mockPHI{entities: []phi.Entity{
		{Text: "John", Category: "Person", Offset: 0, Length: 4, Confidence: 0.50},
	}}

	svc := newService(t, &mockOCR{result: singleWordOCR(1000, 1000)}, phiProv, func(cfg *Config) {
		cfg.Match = match.Config{
			ConfidenceThreshold:  0.80,
			PaddingPx:            5,
			FuzzyEntityThreshold: 2,
			MinSimilarityRatio:   0.6,
			MergeAdjacent:        true,
		}
	})

	result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
	if err != nil {
		t.Fatalf("Deidentify returned error: %v", err)
	}

	if result.EntitiesFiltered != 1 || result.EntitiesUnmatched != 0 || result.RegionsProduced != 0 {
		t.Errorf("filtered=%d unmatched=%d regions=%d, want 1/0/0",
			result.EntitiesFiltered, result.EntitiesUnmatched, result.RegionsProduced)
	}
	if result.Status != StatusSuccess {
		t.Errorf("status = %s, want success", result.Status)
	}
}

func TestDeidentify_ScalesRegionsFromDownsampledOCR(t *testing.T) {
	doc := whitePNG(t, 1000, 1000)

	// OCR ran on a half-size rendition; the box targets the full page.
	ocrResult := &ocr.Result{
		FullText: "John",
		Pages: []ocr.Page{{
			Number: 1, Width: 500, Height: 500,
			Words: []ocr.Word{{Text: "John", Confidence: 0.99, Box: geometry.NewBox(1, 50, 100, 25, 10)}},
		}},
	}
	phiProv := &mockPHI{entities: []phi.Entity{
		{Text: "John", Category: "Person", Offset: 0, Length: 4, Confidence: 0.95},
	}}

	svc := newService(t, &mockOCR{result: ocrResult}, phiProv, nil)

	result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
	if err != nil {
		t.Fatalf("Deidentify returned error: %v", err)
	}

	masked, err := png.Decode(bytes.NewReader(result.MaskedDocument))
	if err != nil {
		t.Fatalf("masked output is not a valid PNG: %v", err)
	}
	// Word box (50,100,25,10) padded by 5 is (45,95,35,20) in OCR space;
	// doubled onto the full page it covers (90,190)-(160,230).
	if r, _, _, _ := masked.At(125, 210).RGBA(); r != 0 {
		t.Error("scaled region not painted at full resolution")
	}
	if r, _, _, _ := masked.At(70, 210).RGBA(); r != 0xffff {
		t.Error("paint extends left of the scaled region")
	}
}

func TestDeidentify_ProviderFailures(t *testing.T) {
	doc := whitePNG(t, 100, 100)

	t.Run("ocr failure", func(t *testing.T) {
		svc := newService(t, &mockOCR{err: fmt.Errorf("backend down")}, &mockPHI{}, nil)

		result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
		if !errors.Is(err, ErrOCRProvider) {
			t.Errorf("error = %v, want ErrOCRProvider", err)
		}
		if result.Status != StatusFailure || len(result.MaskedDocument) != 0 {
			t.Errorf("failure result = %+v", result)
		}
	})

	t.Run("phi failure", func(t *testing.T) {
		svc := newService(t, &mockOCR{result: singleWordOCR(100, 100)}, &mockPHI{err: fmt.Errorf("backend down")}, nil)

		result, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
		if !errors.Is(err, ErrPHIProvider) {
			t.Errorf("error = %v, want ErrPHIProvider", err)
		}
		if result.Status != StatusFailure {
			t.Errorf("status = %s, want failure", result.Status)
		}
	})
}

func TestDeidentify_DocumentLoadFailure(t *testing.T) {
	svc := newService(t, &mockOCR{result: singleWordOCR(100, 100)}, &mockPHI{}, nil)

	result, err := svc.Deidentify(context.Background(), []byte("not an image"), "png", phi.LevelSafeHarbor)
	if !errors.Is(err, ErrDocumentLoad) {
		t.Errorf("error = %v, want ErrDocumentLoad", err)
	}
	if result.Status != StatusFailure {
		t.Errorf("status = %s, want failure", result.Status)
	}
}

func TestDeidentify_UnsupportedFormat(t *testing.T) {
	svc := newService(t, &mockOCR{result: singleWordOCR(100, 100)}, &mockPHI{}, nil)

	_, err := svc.Deidentify(context.Background(), whitePNG(t, 10, 10), "bmp", phi.LevelSafeHarbor)
	if !errors.Is(err, ErrDocumentLoad) {
		t.Errorf("error = %v, want ErrDocumentLoad", err)
	}
}

func TestDeidentify_Cancelled(t *testing.T) {
	doc := whitePNG(t, 100, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newService(t, &mockOCR{result: singleWordOCR(100, 100)}, &mockPHI{}, nil)

	result, err := svc.Deidentify(ctx, doc, "png", phi.LevelSafeHarbor)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
	if result.Status != StatusFailure || len(result.MaskedDocument) != 0 {
		t.Errorf("cancelled result = %+v", result)
	}
}

func TestDeidentify_InvalidGeometry(t *testing.T) {
	doc := whitePNG(t, 100, 100)

	bad := &ocr.Result{
		FullText: "x",
		Pages: []ocr.Page{{
			Number: 1, Width: 100, Height: 100,
			Words: []ocr.Word{{Text: "x", Confidence: 0.9, Box: geometry.BoundingBox{Page: 1, Width: -5, Height: 5}}},
		}},
	}

	svc := newService(t, &mockOCR{result: bad}, &mockPHI{}, nil)

	_, err := svc.Deidentify(context.Background(), doc, "png", phi.LevelSafeHarbor)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("error = %v, want ErrInvalidGeometry", err)
	}
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	loader := docio.NewLoader(0, nil)

	if _, err := NewService(&Config{OCRProvider: &mockOCR{}, PHIProvider: &mockPHI{}}); err == nil {
		t.Error("expected error without loader")
	}
	if _, err := NewService(&Config{Loader: loader, PHIProvider: &mockPHI{}}); err == nil {
		t.Error("expected error without OCR provider")
	}
	if _, err := NewService(&Config{Loader: loader, OCRProvider: &mockOCR{}}); err == nil {
		t.Error("expected error without PHI provider")
	}
}
