package certificate

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/sma-roster-api/pkg/export"
)

// Certificate is a rendered certificate and the staging it was drawn from.
type Certificate struct {
	Filename string
	Document *export.Document
	Staged   *Staged
}

// Options configures a Renderer.
type Options struct {
	Layout          Layout
	Loader          *AssetLoader
	Packager        *export.PDFPackager
	LogoSource      string
	SignatureSource string
	Locale          string
	Now             func() time.Time
}

// Renderer runs the stage, load, rasterize and package steps for one subject.
type Renderer struct {
	layout          Layout
	loader          *AssetLoader
	packager        *export.PDFPackager
	logoSource      string
	signatureSource string
	locale          string
	now             func() time.Time
}

// NewRenderer validates the layout and fills unset options with defaults.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Layout == (Layout{}) {
		opts.Layout = DefaultLayout()
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	if opts.Loader == nil {
		opts.Loader = NewAssetLoader(nil, 0)
	}
	if opts.Packager == nil {
		opts.Packager = export.NewPDFPackager(opts.Layout.Title, "student-roster")
	}
	if opts.Locale == "" {
		opts.Locale = DefaultLocale
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{
		layout:          opts.Layout,
		loader:          opts.Loader,
		packager:        opts.Packager,
		logoSource:      opts.LogoSource,
		signatureSource: opts.SignatureSource,
		locale:          opts.Locale,
		now:             opts.Now,
	}, nil
}

// Stage binds subject into the layout with today's date.
func (r *Renderer) Stage(subject Subject) *Staged {
	return Stage(r.layout, subject, FormatDate(r.now(), r.locale))
}

// Render produces a single-page landscape PDF for subject. Nothing is
// returned unless every step succeeded.
func (r *Renderer) Render(ctx context.Context, subject Subject) (*Certificate, error) {
	staged := r.Stage(subject)

	assets, err := r.loader.LoadAll(ctx, map[string]string{
		AssetLogo:      r.logoSource,
		AssetSignature: r.signatureSource,
	})
	if err != nil {
		return nil, err
	}

	raster, err := Rasterize(staged, Assets{Logo: assets[AssetLogo], Signature: assets[AssetSignature]})
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}
	size := raster.Bounds().Size()
	doc, err := r.packager.PackagePNG(buf.Bytes(), size.X, size.Y)
	if err != nil {
		return nil, err
	}

	return &Certificate{Filename: Filename(subject.Name), Document: doc, Staged: staged}, nil
}

// Filename returns "{name}_certificate.pdf" with path separators and control
// characters removed from name.
func Filename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, norm.NFC.String(name))
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		cleaned = "student"
	}
	return cleaned + "_certificate.pdf"
}
