// Package notify fans monitoring events out to listeners beyond the
// control channel.
package notify

import (
	"context"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
)

// Broadcaster receives monitoring events. Implementations must not block
// the caller for long; a slow sink delays the capture cycle.
type Broadcaster interface {
	MonitoringChanged(ctx context.Context, active bool)
	CoordinateAccepted(ctx context.Context, c coords.Coordinate)
}

// Multi delivers every event to each broadcaster in order.
type Multi []Broadcaster

func (m Multi) MonitoringChanged(ctx context.Context, active bool) {
	for _, b := range m {
		b.MonitoringChanged(ctx, active)
	}
}

func (m Multi) CoordinateAccepted(ctx context.Context, c coords.Coordinate) {
	for _, b := range m {
		b.CoordinateAccepted(ctx, c)
	}
}
