package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PixelsToPoints converts CSS pixels (96 dpi) to PDF points (72 dpi).
const PixelsToPoints = 0.75

// Document is a packaged PDF plus the page facts callers assert on.
type Document struct {
	Data        []byte
	Pages       int
	Orientation string
	PageWidth   float64
	PageHeight  float64
}

// PDFPackager wraps a single raster image into a one-page PDF.
type PDFPackager struct {
	title   string
	creator string
	now     func() time.Time
}

// NewPDFPackager constructs a packager that stamps the given document metadata.
func NewPDFPackager(title, creator string) *PDFPackager {
	return &PDFPackager{title: title, creator: creator, now: time.Now}
}

// PackagePNG places a PNG of widthPx x heightPx on a page sized to it at 0.75 pt/px.
// Wider-than-tall images produce a landscape page.
func (p *PDFPackager) PackagePNG(png []byte, widthPx, heightPx int) (*Document, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", widthPx, heightPx)
	}
	w := float64(widthPx) * PixelsToPoints
	h := float64(heightPx) * PixelsToPoints

	orientation := "P"
	size := gofpdf.SizeType{Wd: w, Ht: h}
	if w > h {
		orientation = "L"
		size = gofpdf.SizeType{Wd: h, Ht: w}
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{OrientationStr: orientation, UnitStr: "pt", Size: size})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if p.title != "" {
		pdf.SetTitle(p.title, true)
	}
	if p.creator != "" {
		pdf.SetCreator(p.creator, true)
	}
	pdf.SetCreationDate(p.now())
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("raster", opts, bytes.NewReader(png))
	pdf.ImageOptions("raster", 0, 0, w, h, false, opts, 0, "")
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("package pdf: %w", err)
	}

	pageW, pageH := pdf.GetPageSize()
	doc := &Document{Pages: pdf.PageCount(), Orientation: orientation, PageWidth: pageW, PageHeight: pageH}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	doc.Data = buf.Bytes()
	return doc, nil
}
