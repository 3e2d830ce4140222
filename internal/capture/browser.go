package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"sync"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// Tab hands out a chromedp context bound to an attached browser tab.
type Tab interface {
	Open(ctx context.Context) (context.Context, error)
}

// Browser screencasts a Chrome tab over the DevTools protocol.
type Browser struct {
	tab     Tab
	quality int64
}

// NewBrowser creates a screencast source on tab.
func NewBrowser(tab Tab) *Browser {
	return &Browser{tab: tab, quality: ScreencastQuality}
}

func (b *Browser) Name() string { return "browser" }

// Acquire attaches to the tab and starts the screencast.
func (b *Browser) Acquire(ctx context.Context) (Stream, error) {
	return acquire(ctx, b.Name(), func() (Stream, error) {
		tabCtx, err := b.tab.Open(ctx)
		if err != nil {
			return nil, err
		}

		listenCtx, cancel := context.WithCancel(tabCtx)
		s := &browserStream{
			tabCtx: tabCtx,
			cancel: cancel,
			first:  make(chan struct{}),
			done:   make(chan struct{}),
		}
		chromedp.ListenTarget(listenCtx, s.onEvent)

		err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return page.StartScreencast().
				WithFormat(ScreencastFormat).
				WithQuality(b.quality).
				Do(ctx)
		}))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("start screencast: %w", err)
		}

		go func() {
			select {
			case <-tabCtx.Done():
				s.end()
			case <-s.done:
			}
		}()
		trace.Logger(ctx).Info("browser screencast started", "quality", b.quality)
		return s, nil
	})
}

// browserStream keeps the most recent screencast frame.
type browserStream struct {
	tabCtx context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	latest    image.Image
	first     chan struct{}
	firstOnce sync.Once

	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
}

func (s *browserStream) onEvent(ev any) {
	switch ev := ev.(type) {
	case *page.EventScreencastFrame:
		go chromedp.Run(s.tabCtx, page.ScreencastFrameAck(ev.SessionID))

		data, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			return
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return
		}
		s.mu.Lock()
		s.latest = img
		s.mu.Unlock()
		s.firstOnce.Do(func() { close(s.first) })
	case *inspector.EventDetached:
		s.end()
	}
}

// Frame returns the latest frame, waiting for the first one to arrive.
func (s *browserStream) Frame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.done:
		return nil, ErrEnded
	case <-s.first:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, nil
}

func (s *browserStream) Done() <-chan struct{} { return s.done }

func (s *browserStream) end() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *browserStream) Stop() {
	s.stopOnce.Do(func() {
		s.end()
		s.cancel()
		if s.tabCtx.Err() != nil {
			return
		}
		ctx, cancel := context.WithTimeout(s.tabCtx, screencastStopTimeout)
		defer cancel()
		if err := chromedp.Run(ctx, page.StopScreencast()); err != nil {
			trace.Logger(ctx).Debug("stop screencast failed", "error", err)
		}
	})
}
