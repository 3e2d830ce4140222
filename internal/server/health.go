package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// Health reports process and session health over the standard gRPC health
// protocol. The overall service is SERVING while the process runs;
// HealthService is SERVING only while monitoring is active.
type Health struct {
	srv *health.Server
}

// NewHealth creates a health reporter with monitoring inactive.
func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.srv.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register adds the health service to a gRPC server.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// MonitoringChanged flips the session service status.
func (h *Health) MonitoringChanged(ctx context.Context, active bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if active {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(HealthService, status)
	trace.Logger(ctx).Debug("health status updated", "service", HealthService, "status", status.String())
}

// CoordinateAccepted is a no-op; health tracks only the session state.
func (h *Health) CoordinateAccepted(context.Context, coords.Coordinate) {}

// Shutdown marks every service NOT_SERVING and ends open watches.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

// NewGRPCServer creates a gRPC server with trace propagation and the
// health service registered.
func NewGRPCServer(h *Health, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
	)
	s := grpc.NewServer(opts...)
	h.Register(s)
	return s
}
