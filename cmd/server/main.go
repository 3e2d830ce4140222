// Coordinate monitor - watches a map readout, recognizes the coordinate and
// drives the page's search form, controlled over WebSocket and REST.
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GriffinCanCode/coordwatch/internal/capture"
	"github.com/GriffinCanCode/coordwatch/internal/config"
	"github.com/GriffinCanCode/coordwatch/internal/imageproc"
	"github.com/GriffinCanCode/coordwatch/internal/monitor"
	"github.com/GriffinCanCode/coordwatch/internal/notify"
	"github.com/GriffinCanCode/coordwatch/internal/page"
	"github.com/GriffinCanCode/coordwatch/internal/recognizer"
	"github.com/GriffinCanCode/coordwatch/internal/recognizer/tesseract"
	"github.com/GriffinCanCode/coordwatch/internal/server"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(setupLogger(cfg.LogLevel, cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The browser source and the form submitter share one tab when the
	// screencast page is the search page.
	pageURL := cfg.PageURL
	if pageURL == "" {
		pageURL = cfg.CaptureURL
	}
	tab := page.NewTab(page.TabConfig{
		DevToolsURL: cfg.PageDevToolsURL,
		URL:         pageURL,
		Headless:    cfg.PageDevToolsURL == "",
	})
	defer tab.Close()

	sel := page.DefaultSelectors()
	sel.Form = cfg.PageFormSelector

	srv := server.New()
	health := server.NewHealth()
	broadcasters := notify.Multi{srv, health}

	if cfg.MQTTBroker != "" {
		mq, err := notify.NewMQTT(ctx, notify.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		if err != nil {
			// Relaying is optional; the session works without it.
			slog.Warn("mqtt unavailable, continuing without it", "broker", cfg.MQTTBroker, "error", err)
		} else {
			defer mq.Close()
			broadcasters = append(broadcasters, mq)
		}
	}

	ctrl := monitor.New(monitor.Deps{
		Source:      newSource(cfg, tab),
		Recognizer:  newRecognizer(cfg),
		Submitter:   page.NewFormSubmitter(tab, sel),
		Broadcaster: broadcasters,
		Pipeline:    newPipeline(cfg),
	}, monitor.Options{
		Interval:      cfg.CaptureInterval,
		Tolerance:     cfg.CoordTolerance,
		Confirmations: cfg.CoordConfirmations,
	})
	srv.Bind(ctrl)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("monitor server starting", "http", cfg.HTTPAddr, "grpc", cfg.GRPCAddr, "source", cfg.CaptureSource)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Start gRPC health server
	grpcServer := server.NewGRPCServer(health)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("grpc listen failed", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	if cfg.AutoStart {
		go func() {
			if err := ctrl.Start(ctx); err != nil {
				slog.Error("auto start failed", "error", err)
			}
		}()
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	ctrl.Shutdown(shutdownCtx)
	health.Shutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	slog.Info("shutdown complete")
}

func setupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func newSource(cfg *config.Config, tab *page.Tab) capture.Source {
	switch cfg.CaptureSource {
	case config.SourceBrowser:
		return capture.NewBrowser(tab)
	case config.SourceVideo:
		return capture.NewVideo(cfg.CaptureDevice)
	case config.SourceFiles:
		return capture.NewFiles(cfg.CaptureFiles, true)
	default:
		return capture.NewDesktop()
	}
}

func newRecognizer(cfg *config.Config) *recognizer.Adapter {
	opts := recognizer.DefaultOptions()
	opts.Workers = cfg.OCRWorkers
	opts.CacheDistance = cfg.OCRCacheDistance
	return recognizer.New(tesseract.Factory(tesseract.Config{
		Language:  cfg.OCRLanguage,
		Whitelist: cfg.OCRWhitelist,
	}), opts)
}

func newPipeline(cfg *config.Config) imageproc.Pipeline {
	p := imageproc.DefaultPipeline()
	p.Region = imageproc.RegionFrom(cfg.CaptureRegion)
	p.Scale = cfg.OCRUpscale
	if cfg.OCREnhance {
		f := imageproc.DefaultFilter()
		p.Filter = &f
	}
	return p
}
