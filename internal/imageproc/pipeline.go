package imageproc

import "image"

// Pipeline chains region extraction, foreground isolation, an optional
// legibility filter and upscaling.
type Pipeline struct {
	Region    Region
	Scale     int
	Predicate Predicate // nil skips isolation
	Filter    *Filter   // nil skips the filter
}

// DefaultPipeline crops the top-right readout, keeps cream glyphs and
// enlarges three times.
func DefaultPipeline() Pipeline {
	return Pipeline{Region: TopRight, Scale: DefaultUpscale, Predicate: CreamText}
}

// Process runs the chain on one frame.
func (p Pipeline) Process(frame image.Image) *image.NRGBA {
	img := ExtractRegion(frame, p.Region)
	if IsEmpty(img) {
		return img
	}
	if p.Predicate != nil {
		img = IsolateForeground(img, p.Predicate)
	}
	if p.Filter != nil {
		img = Enhance(img, *p.Filter)
	}
	return Upscale(img, p.Scale)
}
