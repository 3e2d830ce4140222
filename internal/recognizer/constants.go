package recognizer

const (
	// One worker: jobs run strictly one at a time.
	DefaultWorkers = 1

	// Reuse text only for pixel-identical regions.
	DefaultCacheDistance = 0
)
