// Package monitor runs the monitoring session: it owns the capture stream,
// the recognizer lifecycle and the capture schedule, and feeds every
// recognized coordinate through the confirmation tracker.
package monitor

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/GriffinCanCode/coordwatch/internal/capture"
	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/imageproc"
	"github.com/GriffinCanCode/coordwatch/internal/notify"
	"github.com/GriffinCanCode/coordwatch/internal/page"
	"github.com/GriffinCanCode/coordwatch/internal/scheduler"
	"github.com/GriffinCanCode/coordwatch/internal/syncx"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
	"github.com/GriffinCanCode/coordwatch/internal/tracker"
	"github.com/GriffinCanCode/coordwatch/pkg/action"
)

// Recognizer turns a preprocessed region into text.
type Recognizer interface {
	EnsureReady(ctx context.Context) error
	Recognize(ctx context.Context, img image.Image) (string, error)
	Dispose(ctx context.Context) error
}

// Deps are the collaborators of a session.
type Deps struct {
	Source      capture.Source
	Recognizer  Recognizer
	Submitter   page.Submitter
	Broadcaster notify.Broadcaster // nil discards events
	Pipeline    imageproc.Pipeline
	Clock       scheduler.Clock // nil uses the wall clock
}

// Options tune the session.
type Options struct {
	Interval      time.Duration
	Tolerance     int
	Confirmations int
}

// DefaultOptions returns one capture per second, tolerance 10 and three
// confirmations.
func DefaultOptions() Options {
	return Options{
		Interval:      DefaultInterval,
		Tolerance:     tracker.DefaultTolerance,
		Confirmations: tracker.DefaultConfirmations,
	}
}

// Controller is the single monitoring session of the process.
type Controller struct {
	deps    Deps
	opts    Options
	tracker *tracker.Tracker
	sched   *scheduler.Scheduler
	inCycle syncx.Latch

	// announced is the last monitoring state sent to the broadcaster.
	announced *syncx.RWGuard[bool]
	region    *syncx.RWGuard[*image.NRGBA]
	stats     *syncx.RWGuard[Stats]

	pubMu      sync.Mutex
	publishing bool
	pubDirty   bool

	mu          sync.Mutex
	state       State
	session     uint64
	stream      capture.Stream
	startCancel context.CancelFunc
}

// New creates an idle controller.
func New(deps Deps, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = notify.Multi{}
	}
	c := &Controller{
		deps:      deps,
		opts:      opts,
		tracker:   tracker.New(opts.Tolerance, opts.Confirmations),
		announced: syncx.NewGuard(false),
		region:    syncx.NewGuard[*image.NRGBA](nil),
		stats:     syncx.NewGuard(Stats{}),
	}
	c.sched = scheduler.New(opts.Interval, c.runCycle, deps.Clock)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the capture stream, readies the recognizer and arms the
// first capture immediately. It is a no-op while starting or active. Any
// failure releases what was acquired and leaves the controller idle.
func (c *Controller) Start(ctx context.Context) error {
	log := trace.Logger(ctx)

	c.mu.Lock()
	switch c.state {
	case Starting, Active:
		c.mu.Unlock()
		log.Warn("monitoring already starting or active")
		return nil
	case Stopping:
		c.mu.Unlock()
		return apperrors.New(apperrors.CodeUnavailable, "monitoring is stopping")
	}
	c.state = Starting
	c.session++
	session := c.session
	startCtx, cancel := context.WithCancel(ctx)
	c.startCancel = cancel
	c.mu.Unlock()
	defer cancel()

	startCtx, span := trace.StartSpan(startCtx, "monitor_start")
	defer span.End()
	span.SetAttr("source", c.deps.Source.Name())
	log = trace.Logger(startCtx)
	log.Info("starting monitoring", "source", c.deps.Source.Name())

	stream, err := c.deps.Source.Acquire(startCtx)
	if err != nil {
		span.Fail(err)
		return c.abortStart(startCtx, session, err)
	}
	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	go c.watchStream(context.WithoutCancel(startCtx), session, stream)
	log.Info("capture stream acquired")

	if !c.stillStarting(session) {
		return c.abortStart(startCtx, session, nil)
	}

	if err := c.deps.Recognizer.EnsureReady(startCtx); err != nil {
		span.Fail(err)
		return c.abortStart(startCtx, session, err)
	}

	c.mu.Lock()
	if c.state != Starting || c.session != session {
		c.mu.Unlock()
		return c.abortStart(startCtx, session, nil)
	}
	// Armed under the lock: a Stop can only observe Active with the
	// schedule already armed, so its disarm always wins.
	c.state = Active
	c.startCancel = nil
	c.sched.Start(context.WithoutCancel(ctx), 0)
	c.mu.Unlock()

	c.announce(startCtx)
	if !c.isCurrent(session) {
		log.Info("monitoring stopped while starting")
		return apperrors.New(apperrors.CodeCancelled, "monitoring stopped while starting")
	}
	log.Info("monitoring active", "interval", c.opts.Interval)
	return nil
}

func (c *Controller) stillStarting(session uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Starting && c.session == session
}

// abortStart unwinds a start attempt. err is nil when the attempt was
// cancelled by Stop or by the stream ending.
func (c *Controller) abortStart(ctx context.Context, session uint64, err error) error {
	log := trace.Logger(ctx)
	if err != nil && ctx.Err() != nil && !c.stillStarting(session) {
		err = nil
	}
	if err != nil {
		log.Error("monitoring start failed", "error", err)
	} else {
		log.Info("monitoring start cancelled")
	}

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return err
	}
	c.state = Stopping
	c.startCancel = nil
	c.mu.Unlock()

	c.release(ctx)

	if err == nil {
		return apperrors.New(apperrors.CodeCancelled, "monitoring start cancelled")
	}
	return err
}

// Stop ends the session. It is a no-op when idle. While a start is in
// progress it cancels that start, which then unwinds on its own.
func (c *Controller) Stop(ctx context.Context) error {
	log := trace.Logger(ctx)

	c.mu.Lock()
	switch c.state {
	case Idle:
		if c.stream == nil {
			c.mu.Unlock()
			return nil
		}
	case Stopping:
		c.mu.Unlock()
		return nil
	case Starting:
		c.state = Stopping
		cancel := c.startCancel
		c.mu.Unlock()
		log.Info("stop requested while starting")
		if cancel != nil {
			cancel()
		}
		return nil
	}
	c.state = Stopping
	c.mu.Unlock()

	log.Info("stopping monitoring")
	c.release(ctx)
	log.Info("monitoring stopped")
	return nil
}

// release is the single teardown path: disarm the schedule, announce
// inactive, dispose the recognizer, stop the stream, wait out a running
// cycle and forget coordinates. The caller has set Stopping.
func (c *Controller) release(ctx context.Context) {
	log := trace.Logger(ctx)

	c.sched.Stop()
	c.announce(ctx)

	disposeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DisposeTimeout)
	defer cancel()
	if err := c.deps.Recognizer.Dispose(disposeCtx); err != nil {
		log.Error("recognizer dispose failed", "error", err)
	}

	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}

	if err := c.inCycle.Wait(disposeCtx); err != nil {
		log.Warn("capture cycle did not finish before reset", "error", err)
	}
	c.tracker.Reset()

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
}

// watchStream stops the session when its stream ends on its own.
func (c *Controller) watchStream(ctx context.Context, session uint64, stream capture.Stream) {
	<-stream.Done()

	c.mu.Lock()
	current := c.session == session && c.stream == stream
	state := c.state
	c.mu.Unlock()
	if !current || state == Stopping || state == Idle {
		return
	}

	trace.Logger(ctx).Info("capture stream ended", "state", state.String())
	_ = c.Stop(ctx)
}

// Toggle starts when idle and stops otherwise.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.State() == Idle {
		return c.Start(ctx)
	}
	return c.Stop(ctx)
}

// Handle applies a control message. Messages are checked against the
// current state, so duplicates are harmless.
func (c *Controller) Handle(ctx context.Context, a action.Action) error {
	if err := a.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid action")
	}
	switch a.Type {
	case action.StartMonitoring:
		return c.Start(ctx)
	case action.StopMonitoring:
		return c.Stop(ctx)
	default:
		if a.Active() {
			return c.Start(ctx)
		}
		return c.Stop(ctx)
	}
}

// announce sends the current monitoring state (Active or not) unless it was
// the last one sent. Calls that arrive while another is broadcasting return
// at once; the broadcasting caller re-reads the state before it leaves, so
// the last value sent always matches the final state.
func (c *Controller) announce(ctx context.Context) {
	c.pubMu.Lock()
	c.pubDirty = true
	if c.publishing {
		c.pubMu.Unlock()
		return
	}
	c.publishing = true
	for c.pubDirty {
		c.pubDirty = false
		c.pubMu.Unlock()

		active := c.State() == Active
		if syncx.SetIfChanged(c.announced, active, func(a, b bool) bool { return a == b }) {
			trace.Logger(ctx).Info("monitoring state changed", "active", active)
			c.deps.Broadcaster.MonitoringChanged(ctx, active)
		}

		c.pubMu.Lock()
	}
	c.publishing = false
	c.pubMu.Unlock()
}

// Announced returns the monitoring state last sent to listeners.
func (c *Controller) Announced() bool {
	return c.announced.Get()
}

// LastRegion returns the most recent preprocessed region, or nil.
func (c *Controller) LastRegion() *image.NRGBA {
	return c.region.Get()
}

// Shutdown stops the session for process exit.
func (c *Controller) Shutdown(ctx context.Context) {
	_ = c.Stop(ctx)
	for c.State() != Idle {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
