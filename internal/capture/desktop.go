package capture

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// grabber implements platform-specific screenshots.
type grabber interface {
	// available reports whether the platform tool can run at all.
	available() error
	grab(ctx context.Context) ([]byte, error)
}

// Desktop captures the primary display with the platform's screenshot tool.
type Desktop struct {
	newGrabber func(tempDir string) grabber
}

// NewDesktop creates a desktop source for the current platform.
func NewDesktop() *Desktop {
	return &Desktop{newGrabber: newPlatformGrabber}
}

func (d *Desktop) Name() string { return "desktop" }

// Acquire prepares a temp directory for screenshots and checks the tool.
func (d *Desktop) Acquire(ctx context.Context) (Stream, error) {
	return acquire(ctx, d.Name(), func() (Stream, error) {
		tmpDir, err := os.MkdirTemp("", tempDirPattern)
		if err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
		g := d.newGrabber(tmpDir)
		if err := g.available(); err != nil {
			os.RemoveAll(tmpDir)
			return nil, permanent(d.Name(), "screenshot tool unavailable", err)
		}
		trace.Logger(ctx).Info("desktop capture ready", "temp_dir", tmpDir)
		return &desktopStream{grabber: g, tempDir: tmpDir, done: make(chan struct{})}, nil
	})
}

// desktopStream decodes each screenshot, reusing the previous frame when
// the encoded bytes are unchanged.
type desktopStream struct {
	grabber
	tempDir string

	mu       sync.Mutex
	lastHash [16]byte
	last     image.Image

	done chan struct{}
	once sync.Once
}

func (s *desktopStream) Frame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.done:
		return nil, ErrEnded
	default:
	}

	data, err := s.grab(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := md5.Sum(data)
	if s.last != nil && hash == s.lastHash {
		return s.last, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	s.lastHash, s.last = hash, img
	return img, nil
}

func (s *desktopStream) Done() <-chan struct{} { return s.done }

func (s *desktopStream) Stop() {
	s.once.Do(func() {
		close(s.done)
		if s.tempDir != "" {
			os.RemoveAll(s.tempDir)
		}
	})
}
