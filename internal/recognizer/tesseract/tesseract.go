// Package tesseract implements a recognizer engine on the Tesseract OCR library.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/GriffinCanCode/coordwatch/internal/recognizer"
)

// Config selects the trained data and character set.
type Config struct {
	Language  string
	Whitelist string
}

// DefaultConfig restricts recognition to coordinate characters.
func DefaultConfig() Config {
	return Config{Language: "eng", Whitelist: "0123456789/NSEW"}
}

// Engine wraps one Tesseract client.
type Engine struct {
	client *gosseract.Client
}

// New creates a client tuned for a single block of coordinate text.
func New(cfg Config) (*Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set language %q: %w", cfg.Language, err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &Engine{client: client}, nil
}

// Factory returns a recognizer.Factory producing engines with cfg.
func Factory(cfg Config) recognizer.Factory {
	return func(context.Context) (recognizer.Engine, error) {
		return New(cfg)
	}
}

// Recognize encodes img as PNG and returns the recognized text.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

// Close releases the client.
func (e *Engine) Close() error {
	return e.client.Close()
}
