// Package server exposes the monitoring controls over WebSocket, REST and
// gRPC health.
package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound message limit
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Bound on one outbound WebSocket write
	WriteTimeout = 5 * time.Second

	// HealthService is the gRPC health service name reporting the session.
	HealthService = "coordwatch.Monitor"
)

// Server-to-client message types beyond the control actions.
const (
	TypeCoordinate = "coordinate-accepted"
	TypeError      = "error"
)
