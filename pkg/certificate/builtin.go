package certificate

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

var (
	inkColor    = color.NRGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}
	accentColor = color.NRGBA{R: 0x1f, G: 0x3a, B: 0x68, A: 0xff}
)

func builtinAsset(name string) (image.Image, error) {
	switch name {
	case AssetLogo:
		return builtinLogo(), nil
	case AssetSignature:
		return builtinSignature(), nil
	default:
		return nil, fmt.Errorf("unknown built-in asset %q", name)
	}
}

// builtinLogo is a ring seal with a filled core.
func builtinLogo() image.Image {
	const size = 144
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	c := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-c, float64(y)-c)
			switch {
			case d <= c && d >= c-8:
				img.SetNRGBA(x, y, accentColor)
			case d <= c-18:
				img.SetNRGBA(x, y, accentColor)
			}
		}
	}
	return img
}

// builtinSignature is a transparent strip with a damped flourish.
func builtinSignature() image.Image {
	const w, h = 300, 100
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 10; x < w-10; x++ {
		t := float64(x-10) / float64(w-20)
		y := float64(h)/2 + math.Sin(t*5*math.Pi)*(1-t)*30
		for dy := -2; dy <= 2; dy++ {
			img.SetNRGBA(x, int(y)+dy, inkColor)
		}
	}
	return img
}
