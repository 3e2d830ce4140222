package monitor

import (
	"context"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/imageproc"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
	"github.com/GriffinCanCode/coordwatch/internal/tracker"
)

// runCycle is one capture, recognize and decide pass. A firing that finds
// the previous pass still running is dropped.
func (c *Controller) runCycle(ctx context.Context) {
	if !c.inCycle.TryAcquire() {
		c.stats.Write(func(s *Stats) { s.Skipped++ })
		trace.Logger(ctx).Warn("previous capture still in progress, skipping")
		return
	}
	defer c.inCycle.Release()

	ctx, span := trace.StartSpan(ctx, "capture_cycle")
	log := trace.Logger(ctx)
	defer func() {
		span.End()
		log.Debug("capture cycle finished", "span", span)
	}()

	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return
	}
	session, stream := c.session, c.stream
	c.mu.Unlock()
	c.stats.Write(func(s *Stats) { s.Cycles++ })

	frame, err := stream.Frame(ctx)
	if err != nil {
		span.Fail(err)
		if apperrors.IsCode(err, apperrors.CodeCaptureEnded) || ctx.Err() != nil {
			log.Debug("no frame, stream ending", "error", err)
		} else {
			log.Warn("frame capture failed", "error", err)
		}
		return
	}

	region := c.deps.Pipeline.Process(frame)
	c.region.Set(region)
	if imageproc.IsEmpty(region) {
		log.Debug("empty capture region")
		return
	}

	text, err := c.deps.Recognizer.Recognize(ctx, region)
	if err != nil {
		span.Fail(err)
		c.stats.Write(func(s *Stats) { s.RecognitionFailures++ })
		log.Warn("recognition failed", "error", err)
		return
	}
	c.stats.Write(func(s *Stats) { s.LastText = text })

	next, token, ok := coords.ParseText(text)
	if !ok {
		if token == "" {
			log.Debug("no coordinate in recognized text", "text", text)
		} else {
			log.Debug("coordinate token did not parse", "token", token)
		}
		return
	}
	span.SetAttr("coordinate", next.String())

	// The session check sits inside the submission so a Stop that lands
	// mid-cycle never reaches the page.
	var submitted coords.Coordinate
	stale := false
	decision := c.tracker.Observe(next, func(target coords.Coordinate) bool {
		if !c.isCurrent(session) {
			stale = true
			return false
		}
		submitted = target
		return c.deps.Submitter.Submit(ctx, target)
	})
	if stale {
		log.Debug("session ended before submission", "coordinate", next.String())
		return
	}
	span.SetAttr("decision", decision.String())
	c.stats.Write(func(s *Stats) {
		s.LastDecision = decision.String()
		if decision == tracker.Failed {
			s.SubmitFailures++
		}
	})

	switch decision {
	case tracker.Accepted, tracker.Confirmed:
		log.Info("coordinate accepted", "coordinate", submitted.String(), "decision", decision.String())
		c.deps.Broadcaster.CoordinateAccepted(ctx, submitted)
	case tracker.Held:
		p, _ := c.tracker.Pending()
		log.Info("outlier held", "coordinate", next.String(), "count", p.Count)
	case tracker.Failed:
		log.Warn("coordinate submission failed", "coordinate", submitted.String())
	case tracker.Dropped:
		log.Debug("coordinate state reset during submission", "coordinate", submitted.String())
	}
}

func (c *Controller) isCurrent(session uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Active && c.session == session
}
