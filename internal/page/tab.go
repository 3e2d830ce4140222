// Package page drives the host map page through the Chrome DevTools
// protocol: it owns the browser tab and submits coordinates into the
// page's search form.
package page

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/GriffinCanCode/coordwatch/internal/resilience"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// TabConfig selects how the tab is reached.
type TabConfig struct {
	// DevToolsURL attaches to an already running Chrome
	// (ws://host:9222 or http://host:9222). Empty launches one.
	DevToolsURL string
	// URL is navigated to once the tab is attached. Empty keeps the
	// current page.
	URL      string
	Headless bool
}

// Tab lazily attaches to one browser tab and shares it between the
// screencast and form submission.
type Tab struct {
	cfg TabConfig

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewTab creates a detached tab.
func NewTab(cfg TabConfig) *Tab {
	return &Tab{cfg: cfg}
}

// Open returns the tab's chromedp context, attaching on first use and
// again after the browser went away.
func (t *Tab) Open(ctx context.Context) (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx != nil && t.ctx.Err() == nil {
		return t.ctx, nil
	}
	t.releaseLocked()

	log := trace.Logger(ctx)
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if t.cfg.DevToolsURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), t.cfg.DevToolsURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.Flag("headless", t.cfg.Headless),
			chromedp.WindowSize(WindowWidth, WindowHeight),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	err := resilience.Retry(ctx, resilience.CaptureRetryConfig(), func() error {
		return chromedp.Run(tabCtx, t.firstActions()...)
	})
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("attach browser tab: %w", err)
	}

	t.ctx, t.cancel, t.allocCancel = tabCtx, cancel, allocCancel
	log.Info("browser tab attached", "remote", t.cfg.DevToolsURL != "", "url", t.cfg.URL)
	return tabCtx, nil
}

// firstActions attaches the target and optionally navigates.
func (t *Tab) firstActions() []chromedp.Action {
	if t.cfg.URL == "" {
		return []chromedp.Action{chromedp.ActionFunc(func(context.Context) error { return nil })}
	}
	return []chromedp.Action{chromedp.Navigate(t.cfg.URL)}
}

// Close detaches from the tab. A launched browser is shut down.
func (t *Tab) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

func (t *Tab) releaseLocked() {
	if t.cancel != nil {
		t.cancel()
		t.allocCancel()
	}
	t.ctx, t.cancel, t.allocCancel = nil, nil, nil
}
