// Health probe - exits 0 when the monitor answers SERVING, 1 otherwise.
// Suited to container health checks.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/GriffinCanCode/coordwatch/internal/config"
	"github.com/GriffinCanCode/coordwatch/internal/grpcclient"
	"github.com/GriffinCanCode/coordwatch/internal/server"
)

func main() {
	cfg := config.Load()
	addr := flag.String("addr", dialAddr(cfg.GRPCAddr), "monitor gRPC address")
	session := flag.Bool("session", false, "require an active monitoring session")
	wait := flag.Duration("wait", 0, "keep polling up to this long before failing")
	flag.Parse()

	service := ""
	if *session {
		service = server.HealthService
	}

	client, err := grpcclient.New(*addr, grpcclient.DefaultConfig())
	if err != nil {
		slog.Error("dial failed", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	if *wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *wait)
		err = client.WaitServing(ctx, service)
		cancel()
	} else {
		var ok bool
		ok, err = client.Check(ctx, service)
		if err == nil && !ok {
			slog.Error("not serving", "addr", *addr, "service", service)
			os.Exit(1)
		}
	}
	if err != nil {
		slog.Error("health check failed", "addr", *addr, "service", service, "error", err)
		os.Exit(1)
	}
}

// dialAddr turns a listen address like ":50051" into a dialable one.
func dialAddr(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "localhost" + listen
	}
	return listen
}
