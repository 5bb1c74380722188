package docio

import (
	"bytes"
	"fmt"
	"image"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/signintech/gopdf"
	unipdf "github.com/unidoc/unipdf/v3/model"
	"github.com/unidoc/unipdf/v3/render"
)

// pdfPointsPerInch converts between PDF points and pixels at a given DPI
const pdfPointsPerInch = 72.0

// loadPDF rasterizes every page of a scanned PDF at the loader's render
// DPI. Page count is cross-checked against the PDF structure first.
func (l *Loader) loadPDF(data []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to determine page count: %w", err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	reader, err := unipdf.NewPdfReaderLazy(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	title := ""
	if info, err := reader.GetPdfInfo(); err == nil && info != nil && info.Title != nil {
		title = info.Title.Decoded()
	}

	pages := make([]image.Image, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		img, err := l.renderPDFPage(reader, pageNum)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
		}
		pages = append(pages, img)
	}

	doc := &Document{
		Pages: pages,
		Metadata: Metadata{
			DPI:       l.renderDPI,
			Grayscale: isGrayscale(pages[0]),
			Title:     title,
		},
	}
	l.logger.WithFields("pages", pageCount, "dpi", l.renderDPI).Debug("Loaded PDF document")
	return doc, nil
}

// renderPDFPage renders one PDF page to an image at the loader's DPI
func (l *Loader) renderPDFPage(reader *unipdf.PdfReader, pageNum int) (image.Image, error) {
	page, err := reader.GetPage(pageNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	mediaBox, err := page.GetMediaBox()
	if err != nil {
		return nil, fmt.Errorf("failed to get media box: %w", err)
	}

	device := render.NewImageDevice()
	pageWidthPts := mediaBox.Urx - mediaBox.Llx
	device.OutputWidth = int(pageWidthPts * float64(l.renderDPI) / pdfPointsPerInch)

	img, err := device.Render(page)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return img, nil
}

// savePDF rebuilds the document as a PDF with one full-page image per
// page, then reapplies title and producer properties.
func (l *Loader) savePDF(doc *Document) ([]byte, error) {
	dpi := doc.Metadata.DPI
	if dpi <= 0 {
		dpi = 300
	}

	pdf := gopdf.GoPdf{}
	first := doc.Pages[0].Bounds()
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{
		W: float64(first.Dx()) * pdfPointsPerInch / float64(dpi),
		H: float64(first.Dy()) * pdfPointsPerInch / float64(dpi),
	}})

	for i, page := range doc.Pages {
		bounds := page.Bounds()
		rect := gopdf.Rect{
			W: float64(bounds.Dx()) * pdfPointsPerInch / float64(dpi),
			H: float64(bounds.Dy()) * pdfPointsPerInch / float64(dpi),
		}

		pdf.AddPageWithOption(gopdf.PageOption{PageSize: &rect})
		if err := pdf.ImageFrom(page, 0, 0, &rect); err != nil {
			return nil, fmt.Errorf("failed to place page %d image: %w", i+1, err)
		}
	}

	data := pdf.GetBytesPdf()

	properties := map[string]string{
		"Producer": "redactifai",
	}
	if doc.Metadata.Title != "" {
		properties["Title"] = doc.Metadata.Title
	}

	var out bytes.Buffer
	conf := model.NewDefaultConfiguration()
	if err := api.AddProperties(bytes.NewReader(data), &out, properties, conf); err != nil {
		// Properties are cosmetic; the assembled PDF is still valid.
		l.logger.WithError(err).Warn("Failed to add PDF properties")
		return data, nil
	}

	l.logger.WithFields("pages", doc.PageCount(), "bytes", out.Len()).Debug("Saved PDF document")
	return out.Bytes(), nil
}
