package certificate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout describes the fixed certificate frame in raster pixels.
type Layout struct {
	Width       int       `yaml:"width"`
	Height      int       `yaml:"height"`
	Padding     int       `yaml:"padding"`
	Border      int       `yaml:"border"`
	TopMargin   int       `yaml:"top_margin"`
	LineSpacing float64   `yaml:"line_spacing"`
	Title       string    `yaml:"title"`
	Logo        Slot      `yaml:"logo"`
	Signature   Slot      `yaml:"signature"`
	Fonts       FontSizes `yaml:"fonts"`
}

// Slot bounds an image. A zero Height keeps the image's aspect ratio.
type Slot struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Margin int `yaml:"margin"`
}

// FontSizes are point sizes at 72 dpi, so one point is one raster pixel.
type FontSizes struct {
	Title  float64 `yaml:"title"`
	Name   float64 `yaml:"name"`
	Course float64 `yaml:"course"`
	Body   float64 `yaml:"body"`
	Footer float64 `yaml:"footer"`
}

// DefaultLayout is the 800x600 frame with 20px padding and a 1px border.
func DefaultLayout() Layout {
	return Layout{
		Width:       800,
		Height:      600,
		Padding:     20,
		Border:      1,
		TopMargin:   20,
		LineSpacing: 1.6,
		Title:       "Certificate of Completion",
		Logo:        Slot{Width: 72, Height: 72, Margin: 12},
		Signature:   Slot{Width: 100, Margin: 20},
		Fonts: FontSizes{
			Title:  32,
			Name:   24,
			Course: 19,
			Body:   16,
			Footer: 16,
		},
	}
}

// LoadLayout overlays the YAML file at path onto DefaultLayout. An empty path
// returns the defaults.
func LoadLayout(path string) (Layout, error) {
	layout := DefaultLayout()
	if path == "" {
		return layout, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return Layout{}, fmt.Errorf("parse layout file: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

// Validate rejects frames that cannot hold their content.
func (l Layout) Validate() error {
	switch {
	case l.Width <= 0 || l.Height <= 0:
		return fmt.Errorf("layout size must be positive, got %dx%d", l.Width, l.Height)
	case l.Width <= l.Height:
		return fmt.Errorf("layout must be landscape, got %dx%d", l.Width, l.Height)
	case l.Padding < 0 || l.Border < 0:
		return fmt.Errorf("layout padding and border must not be negative")
	case 2*(l.Padding+l.Border) >= l.Width || 2*(l.Padding+l.Border) >= l.Height:
		return fmt.Errorf("layout padding leaves no drawable area")
	case l.LineSpacing <= 0:
		return fmt.Errorf("layout line_spacing must be positive")
	case l.Fonts.Title <= 0 || l.Fonts.Name <= 0 || l.Fonts.Course <= 0 || l.Fonts.Body <= 0 || l.Fonts.Footer <= 0:
		return fmt.Errorf("layout font sizes must be positive")
	case l.Signature.Width <= 0:
		return fmt.Errorf("layout signature width must be positive")
	}
	return nil
}
