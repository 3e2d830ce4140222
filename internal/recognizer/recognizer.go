// Package recognizer owns the text recognition workers. Initialization is
// lazy and shared: concurrent EnsureReady calls wait on the same attempt.
package recognizer

import (
	"context"
	"crypto/md5"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"

	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/imageproc"
	"github.com/GriffinCanCode/coordwatch/internal/resilience"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// ErrNotReady is returned by Recognize before EnsureReady has succeeded.
var ErrNotReady = apperrors.New(apperrors.CodeRecognizerNotReady, "recognizer not initialized")

// Engine recognizes text in a single image. Implementations need not be
// safe for concurrent use; the adapter never shares one between jobs.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// Factory creates one worker engine.
type Factory func(ctx context.Context) (Engine, error)

// Options tunes the adapter.
type Options struct {
	Workers       int
	Breaker       resilience.Config
	// CacheDistance controls reuse of the previous text. 0 reuses it only for
	// a pixel-identical region; above 0 also for regions whose pHash is within
	// that distance; below 0 never.
	CacheDistance int
}

// DefaultOptions returns a single worker with a pixel-exact frame cache.
func DefaultOptions() Options {
	return Options{
		Workers:       DefaultWorkers,
		Breaker:       resilience.RecognitionConfig(),
		CacheDistance: DefaultCacheDistance,
	}
}

// pool is one initialized generation of workers.
type pool struct {
	workers []Engine
	idle    chan Engine
	closed  chan struct{}
}

// initCall is a shared in-flight initialization.
type initCall struct {
	done chan struct{}
	err  error
}

// Adapter serializes recognition jobs over a fixed pool of engines.
type Adapter struct {
	factory Factory
	opts    Options
	breaker *resilience.Breaker

	mu   sync.Mutex
	pool *pool
	init *initCall

	cacheMu sync.Mutex
	last    *fingerprint
}

// fingerprint identifies a recognized region.
type fingerprint struct {
	digest [md5.Size]byte
	phash  *goimagehash.ImageHash // nil unless similarity reuse is enabled
	text   string
}

// New creates an adapter; no engines are created until EnsureReady.
func New(factory Factory, opts Options) *Adapter {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	return &Adapter{
		factory: factory,
		opts:    opts,
		breaker: resilience.New("recognizer", opts.Breaker),
	}
}

// Ready reports whether workers are initialized.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pool != nil
}

// EnsureReady initializes the worker pool once. Concurrent callers share a
// single attempt; on failure every waiter gets the error and the next call
// retries from scratch.
func (a *Adapter) EnsureReady(ctx context.Context) error {
	a.mu.Lock()
	if a.pool != nil {
		a.mu.Unlock()
		return nil
	}
	call := a.init
	if call == nil {
		call = &initCall{done: make(chan struct{})}
		a.init = call
		go a.initialize(context.WithoutCancel(ctx), call)
	}
	a.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) initialize(ctx context.Context, call *initCall) {
	log := trace.Logger(ctx)
	log.Info("initializing recognizer", "workers", a.opts.Workers)

	workers := make([]Engine, 0, a.opts.Workers)
	var err error
	for i := 0; i < a.opts.Workers; i++ {
		var e Engine
		if e, err = a.factory(ctx); err != nil {
			err = apperrors.Wrapf(err, apperrors.CodeRecognizerInitFailed, "create worker %d", i)
			break
		}
		workers = append(workers, e)
	}
	if err != nil {
		closeAll(workers)
		log.Error("recognizer initialization failed", "error", err)
	}

	a.mu.Lock()
	if err == nil {
		p := &pool{workers: workers, idle: make(chan Engine, len(workers)), closed: make(chan struct{})}
		for _, w := range workers {
			p.idle <- w
		}
		a.pool = p
	}
	a.init = nil
	call.err = err
	close(call.done)
	a.mu.Unlock()
}

// Recognize runs one job. An empty image yields "" without touching a worker.
func (a *Adapter) Recognize(ctx context.Context, img image.Image) (string, error) {
	if imageproc.IsEmpty(img) {
		return "", nil
	}

	a.mu.Lock()
	p := a.pool
	a.mu.Unlock()
	if p == nil {
		return "", ErrNotReady
	}

	fp := a.identify(img)
	if text, ok := a.cached(fp); ok {
		trace.Logger(ctx).Debug("reusing recognition for unchanged region")
		return text, nil
	}

	var w Engine
	select {
	case w = <-p.idle:
	case <-p.closed:
		return "", ErrNotReady
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { p.idle <- w }()

	text, err := resilience.ExecuteWithResult(a.breaker, func() (string, error) {
		return w.Recognize(ctx, img)
	})
	if err != nil {
		if apperrors.Is(err, resilience.ErrOpen) {
			return "", err
		}
		return "", apperrors.Wrap(err, apperrors.CodeRecognitionFailed, "recognize")
	}

	a.remember(fp, text)
	return text, nil
}

// Dispose waits for any in-flight initialization and running jobs, then
// closes every worker. Safe to call repeatedly or before initialization.
func (a *Adapter) Dispose(ctx context.Context) error {
	a.mu.Lock()
	call := a.init
	a.mu.Unlock()
	if call != nil {
		select {
		case <-call.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	a.mu.Lock()
	p := a.pool
	a.pool = nil
	a.mu.Unlock()

	a.remember(nil, "")
	if p == nil {
		return nil
	}
	close(p.closed)

	for range p.workers {
		select {
		case <-p.idle:
		case <-ctx.Done():
			return fmt.Errorf("dispose: waiting for running jobs: %w", ctx.Err())
		}
	}
	closeAll(p.workers)
	slog.Info("recognizer disposed", "workers", len(p.workers))
	return nil
}

func closeAll(workers []Engine) {
	for _, w := range workers {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close recognizer worker", "error", err)
		}
	}
}

func (a *Adapter) identify(img image.Image) *fingerprint {
	if a.opts.CacheDistance < 0 {
		return nil
	}
	fp := &fingerprint{digest: digest(img)}
	if a.opts.CacheDistance > 0 {
		if h, err := goimagehash.PerceptionHash(img); err == nil {
			fp.phash = h
		}
	}
	return fp
}

// digest hashes the region's pixels row by row, so a single changed glyph
// yields a different key.
func digest(img image.Image) [md5.Size]byte {
	n, ok := img.(*image.NRGBA)
	if !ok {
		n = imaging.Clone(img)
	}
	h := md5.New()
	b := n.Bounds()
	rowLen := b.Dx() * 4
	fmt.Fprintf(h, "%dx%d;", b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := n.PixOffset(b.Min.X, y)
		h.Write(n.Pix[off : off+rowLen])
	}
	var sum [md5.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func (a *Adapter) cached(fp *fingerprint) (string, bool) {
	if fp == nil {
		return "", false
	}
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	last := a.last
	if last == nil {
		return "", false
	}
	if last.digest == fp.digest {
		return last.text, true
	}
	if fp.phash == nil || last.phash == nil {
		return "", false
	}
	dist, err := last.phash.Distance(fp.phash)
	if err != nil || dist > a.opts.CacheDistance {
		return "", false
	}
	return last.text, true
}

func (a *Adapter) remember(fp *fingerprint, text string) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if fp == nil {
		a.last = nil
		return
	}
	fp.text = text
	a.last = fp
}
