// Package capture provides frame sources for the monitoring loop: the
// desktop, a Chrome tab screencast, a video device or stream, and still
// images for development.
package capture

import (
	"context"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder

	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/resilience"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// Source acquires a live stream of frames.
type Source interface {
	Acquire(ctx context.Context) (Stream, error)
	Name() string
}

// Stream yields frames until it ends or is stopped.
type Stream interface {
	// Frame returns the current frame. After the stream has ended it
	// returns a CAPTURE_ENDED error.
	Frame(ctx context.Context) (image.Image, error)
	// Done is closed when the stream ends for any reason, including Stop.
	Done() <-chan struct{}
	// Stop releases the stream. Safe to call more than once.
	Stop()
}

// ErrEnded is returned by Frame once the stream has ended.
var ErrEnded = apperrors.New(apperrors.CodeCaptureEnded, "capture stream ended")

// acquire runs open with the capture retry policy and classifies the final
// failure as CAPTURE_UNAVAILABLE.
func acquire[T any](ctx context.Context, source string, open func() (T, error)) (T, error) {
	log := trace.Logger(ctx)
	attempt := 0
	v, err := resilience.RetryWithResult(ctx, resilience.CaptureRetryConfig(), func() (T, error) {
		attempt++
		v, err := open()
		if err != nil {
			log.Debug("capture acquisition attempt failed", "source", source, "attempt", attempt, "error", err)
		}
		return v, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
		if apperrors.IsCode(err, apperrors.CodeCaptureUnavailable) {
			return v, err
		}
		return v, apperrors.Wrapf(err, apperrors.CodeCaptureUnavailable, "acquire %s capture", source).
			WithMetadata("source", source)
	}
	return v, nil
}

// permanent marks a failure that retrying cannot fix.
func permanent(source, msg string, err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeInvalidArgument, msg).WithMetadata("source", source)
}
