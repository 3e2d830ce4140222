package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Filter is a legibility pass: luma grayscale, gamma, contrast around
// mid-grey, brightness gain, then an optional binary threshold.
type Filter struct {
	Gamma      float64
	Contrast   float64
	Brightness float64
	Threshold  int // <0 disables thresholding
}

// DefaultFilter returns the tuning used for the coordinate readout.
func DefaultFilter() Filter {
	return Filter{
		Gamma:      FilterGamma,
		Contrast:   FilterContrast,
		Brightness: FilterBrightness,
		Threshold:  FilterThreshold,
	}
}

// Level maps one RGB triple to its filtered grey level.
func (f Filter) Level(r, g, b uint8) uint8 {
	luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	v := math.Pow(luma/255, f.Gamma) * 255
	v = ((v-128)*f.Contrast + 128) * f.Brightness
	v = math.Max(0, math.Min(255, v))
	if f.Threshold >= 0 {
		if v >= float64(f.Threshold) {
			return 255
		}
		return 0
	}
	return uint8(v)
}

// Enhance applies f to every pixel, preserving alpha.
func Enhance(img image.Image, f Filter) *image.NRGBA {
	if IsEmpty(img) {
		return empty()
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		l := f.Level(c.R, c.G, c.B)
		return color.NRGBA{R: l, G: l, B: l, A: c.A}
	})
}
