package page

import "time"

// Launched browser window
const (
	WindowWidth  = 1280
	WindowHeight = 800
)

// Default selectors of the map search form.
const (
	DefaultFormSelector = ".map-search form"
	DefaultYValueID     = "YValue"
	DefaultYUnitID      = "Yunit"
	DefaultXValueID     = "XValue"
	DefaultXUnitID      = "Xunit"
	DefaultSubmitButton = `button[type="submit"]`

	// SubmitTimeout bounds one form submission round trip.
	SubmitTimeout = 5 * time.Second
)
