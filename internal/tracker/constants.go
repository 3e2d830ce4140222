package tracker

const (
	// Maximum per-axis difference, at matching units, still treated as the same position.
	DefaultTolerance = 10

	// Consecutive agreeing outlier readings required before a jump is accepted.
	DefaultConfirmations = 3
)
