package imageproc

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRegionRect(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		bounds image.Rectangle
		want   image.Rectangle
	}{
		{"top right", TopRight, image.Rect(0, 0, 800, 600), image.Rect(700, 0, 800, 60)},
		{"top right quarter", TopRightQuarter, image.Rect(0, 0, 800, 600), image.Rect(600, 0, 800, 150)},
		{"offset bounds", TopRight, image.Rect(100, 50, 900, 650), image.Rect(800, 50, 900, 110)},
		{"whole frame", Region{0, 0, 1, 1}, image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.region.Rect(tt.bounds); got != tt.want {
				t.Errorf("Rect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractRegion(t *testing.T) {
	frame := solid(800, 600, color.NRGBA{R: 10, A: 255})
	frame.SetNRGBA(799, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	got := ExtractRegion(frame, TopRight)
	if got.Bounds().Dx() != 100 || got.Bounds().Dy() != 60 {
		t.Fatalf("size = %v, want 100x60", got.Bounds().Size())
	}
	if c := got.NRGBAAt(99, 0); c.G != 255 {
		t.Errorf("top-right pixel = %v, want white", c)
	}
}

func TestExtractRegionEmptyFrame(t *testing.T) {
	for _, frame := range []image.Image{nil, image.NewNRGBA(image.Rectangle{}), image.NewRGBA(image.Rect(0, 0, 0, 40))} {
		if got := ExtractRegion(frame, TopRight); !IsEmpty(got) {
			t.Errorf("ExtractRegion(empty) = %v, want zero-size", got.Bounds())
		}
	}
}

func TestUpscale(t *testing.T) {
	src := solid(10, 4, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	got := Upscale(src, 3)
	if got.Bounds() != image.Rect(0, 0, 30, 12) {
		t.Fatalf("bounds = %v, want 30x12", got.Bounds())
	}
	if c := got.NRGBAAt(15, 6); c.R < 195 || c.R > 205 {
		t.Errorf("interior pixel = %v, want about 200", c)
	}

	if got := Upscale(src, 0); got.Bounds().Dx() != 10 {
		t.Errorf("factor 0 width = %d, want 10", got.Bounds().Dx())
	}
	if got := Upscale(image.NewNRGBA(image.Rectangle{}), 3); !IsEmpty(got) {
		t.Error("upscaling empty image should stay empty")
	}
}

func TestIsolateForeground(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 250, G: 245, B: 200, A: 255}) // cream
	img.SetNRGBA(1, 0, color.NRGBA{R: 180, G: 180, B: 170, A: 128}) // exactly on floor
	img.SetNRGBA(2, 0, color.NRGBA{R: 180, G: 179, B: 255, A: 255}) // green too low
	img.SetNRGBA(3, 0, color.NRGBA{R: 20, G: 40, B: 60, A: 77})     // background

	got := IsolateForeground(img, CreamText)

	want := []color.NRGBA{
		{R: 250, G: 245, B: 200, A: 255},
		{R: 180, G: 180, B: 170, A: 128},
		{A: 255},
		{A: 77},
	}
	for x, w := range want {
		if c := got.NRGBAAt(x, 0); c != w {
			t.Errorf("pixel %d = %v, want %v", x, c, w)
		}
	}
}

func TestFilterLevel(t *testing.T) {
	f := DefaultFilter()

	if got := f.Level(255, 255, 255); got != 255 {
		t.Errorf("white = %d, want 255", got)
	}
	if got := f.Level(0, 0, 0); got != 0 {
		t.Errorf("black = %d, want 0", got)
	}
	if got := f.Level(128, 128, 128); got != 0 {
		t.Errorf("mid grey = %d, want 0 after threshold", got)
	}

	f.Threshold = -1
	if got := f.Level(255, 255, 255); got != 255 {
		t.Errorf("white without threshold = %d, want 255", got)
	}
}

func TestEnhancePreservesAlpha(t *testing.T) {
	img := solid(2, 2, color.NRGBA{R: 240, G: 240, B: 230, A: 90})

	got := Enhance(img, DefaultFilter())
	c := got.NRGBAAt(1, 1)
	if c.R != 255 || c.G != 255 || c.B != 255 || c.A != 90 {
		t.Errorf("pixel = %v, want white with alpha 90", c)
	}
}

func TestPipelineProcess(t *testing.T) {
	frame := solid(800, 600, color.NRGBA{R: 30, G: 30, B: 30, A: 255})
	for x := 720; x < 780; x++ {
		frame.SetNRGBA(x, 30, color.NRGBA{R: 250, G: 250, B: 240, A: 255})
	}

	got := DefaultPipeline().Process(frame)
	if got.Bounds() != image.Rect(0, 0, 300, 180) {
		t.Fatalf("bounds = %v, want 300x180", got.Bounds())
	}
	if c := got.NRGBAAt(5, 5); c.R != 0 || c.G != 0 || c.B != 0 {
		t.Errorf("background pixel = %v, want black", c)
	}

	if got := DefaultPipeline().Process(image.NewNRGBA(image.Rectangle{})); !IsEmpty(got) {
		t.Error("empty frame should produce empty output")
	}
}

func TestRegionFrom(t *testing.T) {
	if got := RegionFrom([4]float64{0.875, 0, 1, 0.1}); got != TopRight {
		t.Errorf("RegionFrom() = %+v, want TopRight", got)
	}
}
