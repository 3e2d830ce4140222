package imageproc

const (
	// Readout glyph colour floor per channel.
	CreamMinRed   = 180
	CreamMinGreen = 180
	CreamMinBlue  = 170

	// Small source text needs enlarging before recognition.
	DefaultUpscale = 3

	FilterGamma      = 0.8
	FilterContrast   = 1.3
	FilterBrightness = 1.1
	FilterThreshold  = 180
)
