package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// Files replays still images, one per frame. It stands in for a live feed
// when tuning the region and filter against saved screenshots.
type Files struct {
	paths []string
	loop  bool
}

// NewFiles creates a still-image source. With loop the images repeat
// forever; otherwise the stream ends after the last one.
func NewFiles(paths []string, loop bool) *Files {
	return &Files{paths: paths, loop: loop}
}

func (f *Files) Name() string { return "files" }

// Acquire decodes every image up front.
func (f *Files) Acquire(ctx context.Context) (Stream, error) {
	return acquire(ctx, f.Name(), func() (Stream, error) {
		if len(f.paths) == 0 {
			return nil, permanent(f.Name(), "no images configured", errors.New("empty path list"))
		}
		frames := make([]image.Image, 0, len(f.paths))
		for _, p := range f.paths {
			img, err := imaging.Open(p)
			if err != nil {
				return nil, permanent(f.Name(), fmt.Sprintf("load %s", p), err)
			}
			frames = append(frames, img)
		}
		trace.Logger(ctx).Info("still images loaded", "count", len(frames), "loop", f.loop)
		return &filesStream{frames: frames, loop: f.loop, done: make(chan struct{})}, nil
	})
}

type filesStream struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	loop   bool

	done chan struct{}
	once sync.Once
}

func (s *filesStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return nil, ErrEnded
	default:
	}

	img := s.frames[s.next]
	s.next++
	if s.next == len(s.frames) {
		if !s.loop {
			s.once.Do(func() { close(s.done) })
		}
		s.next = 0
	}
	return img, nil
}

func (s *filesStream) Done() <-chan struct{} { return s.done }

func (s *filesStream) Stop() {
	s.once.Do(func() { close(s.done) })
}
