// Package config handles service configuration
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
)

// Capture source kinds.
const (
	SourceDesktop = "desktop"
	SourceBrowser = "browser"
	SourceVideo   = "video"
	SourceFiles   = "files"
)

type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	LogLevel  string
	LogFormat string // text | json
	AutoStart bool

	CaptureSource   string
	CaptureDevice   string   // video device index or stream URL
	CaptureURL      string   // page to screencast for the browser source
	CaptureFiles    []string // still images for the files source
	CaptureInterval time.Duration
	CaptureRegion   [4]float64 // left, top, right, bottom as frame fractions

	OCRLanguage      string
	OCRWhitelist     string
	OCRWorkers       int
	OCRUpscale       int
	OCREnhance       bool
	OCRCacheDistance int // 0 reuses text for identical regions, >0 pHash distance, -1 disables

	CoordTolerance     int
	CoordConfirmations int

	PageDevToolsURL  string // remote Chrome; empty launches a local one
	PageURL          string
	PageFormSelector string

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
}

func Load() *Config {
	return &Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),
		GRPCAddr:  getEnv("GRPC_ADDR", ":50051"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		AutoStart: getEnvBool("AUTO_START", false),

		CaptureSource:   getEnv("CAPTURE_SOURCE", SourceDesktop),
		CaptureDevice:   getEnv("CAPTURE_DEVICE", "0"),
		CaptureURL:      getEnv("CAPTURE_URL", ""),
		CaptureFiles:    getEnvList("CAPTURE_FILES", nil),
		CaptureInterval: getEnvDuration("CAPTURE_INTERVAL", time.Second),
		CaptureRegion:   getEnvRegion("CAPTURE_REGION", [4]float64{0.875, 0, 1, 0.1}),

		OCRLanguage:      getEnv("OCR_LANGUAGE", "eng"),
		OCRWhitelist:     getEnv("OCR_WHITELIST", "0123456789/NSEW"),
		OCRWorkers:       getEnvInt("OCR_WORKERS", 1),
		OCRUpscale:       getEnvInt("OCR_UPSCALE", 3),
		OCREnhance:       getEnvBool("OCR_ENHANCE", false),
		OCRCacheDistance: getEnvInt("OCR_CACHE_DISTANCE", 0),

		CoordTolerance:     getEnvInt("COORD_TOLERANCE", 10),
		CoordConfirmations: getEnvInt("COORD_CONFIRMATIONS", 3),

		PageDevToolsURL:  getEnv("PAGE_DEVTOOLS_URL", ""),
		PageURL:          getEnv("PAGE_URL", ""),
		PageFormSelector: getEnv("PAGE_FORM_SELECTOR", ".map-search form"),

		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "coordwatch"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "coordwatch"),
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.CaptureInterval <= 0:
		return invalid("CAPTURE_INTERVAL", "must be positive, got %s", c.CaptureInterval)
	case c.OCRUpscale < 1:
		return invalid("OCR_UPSCALE", "must be at least 1, got %d", c.OCRUpscale)
	case c.OCRWorkers < 1:
		return invalid("OCR_WORKERS", "must be at least 1, got %d", c.OCRWorkers)
	case c.CoordTolerance < 0:
		return invalid("COORD_TOLERANCE", "must not be negative, got %d", c.CoordTolerance)
	case c.CoordConfirmations < 1:
		return invalid("COORD_CONFIRMATIONS", "must be at least 1, got %d", c.CoordConfirmations)
	}

	r := c.CaptureRegion
	for _, f := range r {
		if f < 0 || f > 1 {
			return invalid("CAPTURE_REGION", "fractions must be within [0,1], got %v", r)
		}
	}
	if r[0] >= r[2] || r[1] >= r[3] {
		return invalid("CAPTURE_REGION", "region is empty or inverted: %v", r)
	}

	switch c.CaptureSource {
	case SourceDesktop, SourceVideo:
	case SourceBrowser:
		if c.CaptureURL == "" && c.PageDevToolsURL == "" {
			return invalid("CAPTURE_URL", "browser source needs CAPTURE_URL or PAGE_DEVTOOLS_URL")
		}
	case SourceFiles:
		if len(c.CaptureFiles) == 0 {
			return invalid("CAPTURE_FILES", "files source needs at least one image")
		}
	default:
		return invalid("CAPTURE_SOURCE", "unknown source %q", c.CaptureSource)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("LOG_FORMAT", "unknown format %q", c.LogFormat)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeConfigInvalid, format, args...).WithMetadata("key", key)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

// getEnvRegion parses "left,top,right,bottom"; malformed values fall back to def.
func getEnvRegion(key string, def [4]float64) [4]float64 {
	parts := getEnvList(key, nil)
	if len(parts) != 4 {
		return def
	}
	var r [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return def
		}
		r[i] = f
	}
	return r
}

// RegionString renders a region for logs.
func RegionString(r [4]float64) string {
	return fmt.Sprintf("%.3f,%.3f,%.3f,%.3f", r[0], r[1], r[2], r[3])
}
