package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// Video reads frames from a capture device index or a stream URL.
type Video struct {
	device string
}

// NewVideo creates a video source. device is a numeric device index or
// anything OpenCV can open (file, RTSP or HTTP URL).
func NewVideo(device string) *Video {
	return &Video{device: device}
}

func (v *Video) Name() string { return "video" }

// Acquire opens the device, retrying while it comes up.
func (v *Video) Acquire(ctx context.Context) (Stream, error) {
	return acquire(ctx, v.Name(), func() (Stream, error) {
		capture, err := gocv.OpenVideoCapture(v.device)
		if err != nil {
			return nil, fmt.Errorf("open video capture %q: %w", v.device, err)
		}
		if !capture.IsOpened() {
			capture.Close()
			return nil, errors.New("video capture is not opened")
		}
		trace.Logger(ctx).Info("video capture opened", "device", v.device)
		return &videoStream{capture: capture, mat: gocv.NewMat(), done: make(chan struct{})}, nil
	})
}

// videoStream reuses one Mat for every read.
type videoStream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	closed  bool

	done chan struct{}
	once sync.Once
}

// Frame reads the next frame. A failed read or an empty frame ends the stream.
func (s *videoStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrEnded
	}

	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		trace.Logger(ctx).Info("video stream ended")
		s.releaseLocked()
		return nil, ErrEnded
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (s *videoStream) Done() <-chan struct{} { return s.done }

func (s *videoStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *videoStream) releaseLocked() {
	if !s.closed {
		s.closed = true
		s.mat.Close()
		s.capture.Close()
	}
	s.once.Do(func() { close(s.done) })
}
