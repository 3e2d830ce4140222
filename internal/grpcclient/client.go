package grpcclient

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/resilience"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// Config holds connection settings.
type Config struct {
	KeepaliveTime       time.Duration
	KeepaliveTimeout    time.Duration
	HealthCheckInterval time.Duration
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		KeepaliveTime:       DefaultKeepaliveTime,
		KeepaliveTimeout:    DefaultKeepaliveTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
	}
}

// Client probes a monitor's health service.
type Client struct {
	conn    *grpc.ClientConn
	cfg     Config
	breaker *resilience.Breaker
	Health  healthpb.HealthClient
}

// New creates a client for addr. Extra dial options are appended, which
// tests use to dial in-memory listeners.
func New(addr string, cfg Config, opts ...grpc.DialOption) (*Client, error) {
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeUnavailable, "dial %s", addr)
	}
	return &Client{
		conn:    conn,
		cfg:     cfg,
		breaker: resilience.New("health", resilience.DefaultConfig()),
		Health:  healthpb.NewHealthClient(conn),
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check reports whether service is SERVING. An empty service asks about
// the process as a whole.
func (c *Client) Check(ctx context.Context, service string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	return resilience.ExecuteWithResult(c.breaker, func() (bool, error) {
		resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return false, apperrors.FromGRPCError(err)
		}
		return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
	})
}

// WaitServing polls until service is SERVING or ctx ends.
func (c *Client) WaitServing(ctx context.Context, service string) error {
	log := trace.Logger(ctx)
	ticker := time.NewTicker(c.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		ok, err := c.Check(ctx, service)
		if ok {
			return nil
		}
		if err != nil {
			log.Debug("health check failed", "service", service, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Watch streams status changes of service to fn until ctx ends or the
// server closes the stream.
func (c *Client) Watch(ctx context.Context, service string, fn func(serving bool)) error {
	stream, err := c.Health.Watch(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return apperrors.FromGRPCError(err)
	}
	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperrors.FromGRPCError(err)
		}
		fn(resp.GetStatus() == healthpb.HealthCheckResponse_SERVING)
	}
}

// State returns the probe breaker state.
func (c *Client) State() resilience.State {
	return c.breaker.State()
}
