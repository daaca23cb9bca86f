package certificate

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontsOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regularFont, fontsErr = opentype.Parse(goregular.TTF); fontsErr != nil {
			return
		}
		boldFont, fontsErr = opentype.Parse(gobold.TTF)
	})
	return fontsErr
}

// Assets are the decoded images a staged certificate references.
type Assets struct {
	Logo      image.Image
	Signature image.Image
}

// canvas draws text and images onto an RGBA raster, caching one face per style.
type canvas struct {
	img   *image.RGBA
	faces map[faceKey]font.Face
}

type faceKey struct {
	size float64
	bold bool
}

func (c *canvas) face(size float64, bold bool) (font.Face, error) {
	key := faceKey{size: size, bold: bold}
	if f, ok := c.faces[key]; ok {
		return f, nil
	}
	src := regularFont
	if bold {
		src = boldFont
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("build %.1fpt face: %w", size, err)
	}
	c.faces[key] = f
	return f, nil
}

func (c *canvas) close() {
	for _, f := range c.faces {
		_ = f.Close()
	}
}

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// text draws block with its baseline at y; x is the left edge, center or right edge per a.
func (c *canvas) text(block TextBlock, x, y int, a align) error {
	face, err := c.face(block.Size, block.Bold)
	if err != nil {
		return err
	}
	d := &font.Drawer{Dst: c.img, Src: image.NewUniform(inkColor), Face: face}
	width := d.MeasureString(block.Text).Ceil()
	switch a {
	case alignCenter:
		x -= width / 2
	case alignRight:
		x -= width
	}
	d.Dot = fixed.P(x, y)
	d.DrawString(block.Text)
	return nil
}

func (c *canvas) drawImage(src image.Image, at image.Point) {
	b := src.Bounds()
	draw.Draw(c.img, image.Rectangle{Min: at, Max: at.Add(b.Size())}, src, b.Min, draw.Over)
}

// Rasterize draws the staged certificate onto a white canvas of the layout size.
func Rasterize(st *Staged, assets Assets) (*image.RGBA, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	l := st.Layout
	c := &canvas{img: image.NewRGBA(image.Rect(0, 0, l.Width, l.Height)), faces: make(map[faceKey]font.Face)}
	defer c.close()

	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawBorder(c.img, l.Border)

	inset := l.Border + l.Padding
	centerX := l.Width / 2

	if assets.Logo != nil && l.Logo.Width > 0 && l.Logo.Height > 0 {
		logo := imaging.Fit(assets.Logo, l.Logo.Width, l.Logo.Height, imaging.Lanczos)
		size := logo.Bounds().Size()
		top := st.LogoTop + (l.Logo.Height-size.Y)/2
		c.drawImage(logo, image.Pt(centerX-size.X/2, top))
	}

	for _, line := range st.Body {
		if err := c.text(line, centerX, line.Baseline, alignCenter); err != nil {
			return nil, err
		}
	}

	// footer: date bottom-left, label + signature bottom-right
	bottom := l.Height - inset
	footerBaseline := bottom - l.Signature.Margin
	if err := c.text(st.Date, inset+l.Signature.Margin, footerBaseline, alignLeft); err != nil {
		return nil, err
	}

	right := l.Width - inset - l.Signature.Margin
	labelBaseline := footerBaseline
	if assets.Signature != nil {
		sig := imaging.Resize(assets.Signature, l.Signature.Width, l.Signature.Height, imaging.Lanczos)
		size := sig.Bounds().Size()
		top := bottom - l.Signature.Margin - size.Y
		c.drawImage(sig, image.Pt(right-size.X, top))
		labelBaseline = top - int(st.SignatureLabel.Size*0.4)
	}
	if err := c.text(st.SignatureLabel, right, labelBaseline, alignRight); err != nil {
		return nil, err
	}

	return c.img, nil
}

func drawBorder(img *image.RGBA, width int) {
	if width <= 0 {
		return
	}
	b := img.Bounds()
	ink := image.NewUniform(inkColor)
	for _, r := range []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+width),
		image.Rect(b.Min.X, b.Max.Y-width, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+width, b.Max.Y),
		image.Rect(b.Max.X-width, b.Min.Y, b.Max.X, b.Max.Y),
	} {
		draw.Draw(img, r, ink, image.Point{}, draw.Src)
	}
}
