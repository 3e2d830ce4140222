package monitor

import "time"

// Session defaults
const (
	DefaultInterval = time.Second

	// Bound on releasing the recognizer when a session ends.
	DisposeTimeout = 10 * time.Second
)
