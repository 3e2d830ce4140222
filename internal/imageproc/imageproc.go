// Package imageproc prepares captured frames for text recognition: it crops
// the readout region, strips background pixels and enlarges the result.
package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Region is a sub-rectangle expressed as fractions of the frame size.
type Region struct {
	Left, Top, Right, Bottom float64
}

var (
	// TopRight is the rightmost eighth, top tenth of the frame.
	TopRight = Region{Left: 7.0 / 8, Top: 0, Right: 1, Bottom: 1.0 / 10}

	// TopRightQuarter is the rightmost quarter, top quarter of the frame.
	TopRightQuarter = Region{Left: 3.0 / 4, Top: 0, Right: 1, Bottom: 1.0 / 4}
)

// RegionFrom builds a Region from left, top, right, bottom fractions.
func RegionFrom(f [4]float64) Region {
	return Region{Left: f[0], Top: f[1], Right: f[2], Bottom: f[3]}
}

// Rect resolves the region against frame bounds.
func (r Region) Rect(b image.Rectangle) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	return image.Rect(
		b.Min.X+int(math.Round(w*r.Left)),
		b.Min.Y+int(math.Round(h*r.Top)),
		b.Min.X+int(math.Round(w*r.Right)),
		b.Min.Y+int(math.Round(h*r.Bottom)),
	).Intersect(b)
}

// Predicate decides whether a pixel belongs to the foreground.
type Predicate func(c color.NRGBA) bool

// CreamText keeps near-white and cream pixels, the colour of the readout glyphs.
func CreamText(c color.NRGBA) bool {
	return c.R >= CreamMinRed && c.G >= CreamMinGreen && c.B >= CreamMinBlue
}

func empty() *image.NRGBA {
	return image.NewNRGBA(image.Rectangle{})
}

// IsEmpty reports whether img has no pixels.
func IsEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}

// ExtractRegion crops region out of frame. A zero-size frame yields a
// zero-size image.
func ExtractRegion(frame image.Image, region Region) *image.NRGBA {
	if IsEmpty(frame) {
		return empty()
	}
	rect := region.Rect(frame.Bounds())
	if rect.Empty() {
		return empty()
	}
	return imaging.Crop(frame, rect)
}

// Upscale enlarges img by an integer factor with Catmull-Rom interpolation.
// Factors below 1 are treated as 1.
func Upscale(img image.Image, factor int) *image.NRGBA {
	if IsEmpty(img) {
		return empty()
	}
	factor = max(factor, 1)
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// IsolateForeground blackens every pixel failing pred, keeping its alpha.
func IsolateForeground(img image.Image, pred Predicate) *image.NRGBA {
	if IsEmpty(img) {
		return empty()
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if pred(c) {
			return c
		}
		return color.NRGBA{A: c.A}
	})
}
