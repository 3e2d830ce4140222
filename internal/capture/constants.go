package capture

import "time"

// Capture constants
const (
	tempDirPattern = "coordwatch-screen-*"
	screenshotName = "screenshot.png"

	// Chrome screencast settings
	ScreencastFormat  = "jpeg"
	ScreencastQuality = 70

	// Bound on stopping a screencast on a tab that may already be gone.
	screencastStopTimeout = 2 * time.Second
)
