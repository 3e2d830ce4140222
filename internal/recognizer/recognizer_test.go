package recognizer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/imageproc"
	"github.com/GriffinCanCode/coordwatch/internal/resilience"
)

// fakeEngine returns a fixed text, optionally blocking until released.
type fakeEngine struct {
	text    string
	err     error
	block   chan struct{}
	running atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
	closed  atomic.Bool
}

func (e *fakeEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	e.calls.Add(1)
	n := e.running.Add(1)
	defer e.running.Add(-1)
	for {
		m := e.maxSeen.Load()
		if n <= m || e.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return e.text, e.err
}

func (e *fakeEngine) Close() error {
	e.closed.Store(true)
	return nil
}

// fakeFactory counts creations and can fail or gate them.
type fakeFactory struct {
	engine *fakeEngine
	err    error
	gate   chan struct{}
	calls  atomic.Int32
}

func (f *fakeFactory) create(ctx context.Context) (Engine, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.engine, nil
}

func noCache() Options {
	opts := DefaultOptions()
	opts.CacheDistance = -1
	return opts
}

func frame(shade uint8) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := shade
			if (x/4+y/4)%2 == 0 {
				c = 255 - shade
			}
			img.SetNRGBA(x, y, color.NRGBA{R: c, G: c, B: c, A: 255})
		}
	}
	return img
}

func TestRecognizeBeforeReady(t *testing.T) {
	f := &fakeFactory{engine: &fakeEngine{text: "1N/1E"}}
	a := New(f.create, noCache())

	if _, err := a.Recognize(context.Background(), frame(0)); !errors.Is(err, ErrNotReady) {
		t.Errorf("Recognize() error = %v, want ErrNotReady", err)
	}
	if f.calls.Load() != 0 {
		t.Error("factory should not run before EnsureReady")
	}
}

func TestEnsureReadyIdempotent(t *testing.T) {
	f := &fakeFactory{engine: &fakeEngine{text: "37N/127E"}}
	a := New(f.create, noCache())

	for i := 0; i < 3; i++ {
		if err := a.EnsureReady(context.Background()); err != nil {
			t.Fatalf("EnsureReady() #%d = %v", i, err)
		}
	}
	if f.calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1", f.calls.Load())
	}

	text, err := a.Recognize(context.Background(), frame(0))
	if err != nil || text != "37N/127E" {
		t.Errorf("Recognize() = (%q, %v)", text, err)
	}
}

func TestEnsureReadyCoalesces(t *testing.T) {
	f := &fakeFactory{engine: &fakeEngine{}, gate: make(chan struct{})}
	a := New(f.create, noCache())

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- a.EnsureReady(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("EnsureReady() = %v", err)
		}
	}
	if f.calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1", f.calls.Load())
	}
}

func TestEnsureReadyFailureResets(t *testing.T) {
	f := &fakeFactory{engine: &fakeEngine{}, err: errors.New("no trained data")}
	a := New(f.create, noCache())

	err := a.EnsureReady(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeRecognizerInitFailed) {
		t.Fatalf("EnsureReady() = %v, want RECOGNIZER_INIT_FAILED", err)
	}
	if a.Ready() {
		t.Error("Ready() should be false after failure")
	}

	f.err = nil
	if err := a.EnsureReady(context.Background()); err != nil {
		t.Fatalf("retry EnsureReady() = %v", err)
	}
	if f.calls.Load() != 2 {
		t.Errorf("factory calls = %d, want 2", f.calls.Load())
	}
}

func TestEnsureReadyContextCancelled(t *testing.T) {
	f := &fakeFactory{engine: &fakeEngine{}, gate: make(chan struct{})}
	a := New(f.create, noCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.EnsureReady(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("EnsureReady() = %v, want context.Canceled", err)
	}

	close(f.gate)
	if err := a.EnsureReady(context.Background()); err != nil {
		t.Errorf("EnsureReady() after gate = %v", err)
	}
}

func TestPartialInitClosesCreatedWorkers(t *testing.T) {
	first := &fakeEngine{}
	calls := 0
	factory := func(ctx context.Context) (Engine, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return nil, errors.New("out of memory")
	}
	opts := noCache()
	opts.Workers = 2
	a := New(factory, opts)

	if err := a.EnsureReady(context.Background()); err == nil {
		t.Fatal("EnsureReady() should fail")
	}
	if !first.closed.Load() {
		t.Error("worker created before the failure should be closed")
	}
}

func TestRecognizeSerializesJobs(t *testing.T) {
	e := &fakeEngine{text: "x", block: make(chan struct{})}
	f := &fakeFactory{engine: e}
	a := New(f.create, noCache())
	if err := a.EnsureReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Recognize(context.Background(), frame(uint8(i*40)))
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(e.block)
	wg.Wait()

	if e.maxSeen.Load() != 1 {
		t.Errorf("max concurrent jobs = %d, want 1", e.maxSeen.Load())
	}
	if e.calls.Load() != 3 {
		t.Errorf("jobs = %d, want 3", e.calls.Load())
	}
}

func TestRecognizeEmptyImage(t *testing.T) {
	e := &fakeEngine{text: "x"}
	a := New((&fakeFactory{engine: e}).create, noCache())

	text, err := a.Recognize(context.Background(), image.NewNRGBA(image.Rectangle{}))
	if err != nil || text != "" {
		t.Errorf("Recognize(empty) = (%q, %v), want empty", text, err)
	}
	if e.calls.Load() != 0 {
		t.Error("engine should not run for empty image")
	}
}

func TestRecognizeFailureWrapped(t *testing.T) {
	e := &fakeEngine{err: errors.New("tesseract crashed")}
	a := New((&fakeFactory{engine: e}).create, noCache())
	_ = a.EnsureReady(context.Background())

	_, err := a.Recognize(context.Background(), frame(0))
	if !apperrors.IsCode(err, apperrors.CodeRecognitionFailed) {
		t.Errorf("Recognize() = %v, want RECOGNITION_FAILED", err)
	}
}

func TestRecognizeBreakerOpens(t *testing.T) {
	e := &fakeEngine{err: errors.New("bad")}
	opts := noCache()
	opts.Breaker = resilience.Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1}
	a := New((&fakeFactory{engine: e}).create, opts)
	_ = a.EnsureReady(context.Background())

	for i := 0; i < 2; i++ {
		_, _ = a.Recognize(context.Background(), frame(0))
	}
	if _, err := a.Recognize(context.Background(), frame(0)); !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("Recognize() = %v, want ErrOpen", err)
	}
	if e.calls.Load() != 2 {
		t.Errorf("engine calls = %d, want 2", e.calls.Load())
	}
}

func TestRecognizeReusesIdenticalFrame(t *testing.T) {
	e := &fakeEngine{text: "45N/128E"}
	a := New((&fakeFactory{engine: e}).create, DefaultOptions())
	_ = a.EnsureReady(context.Background())

	for i := 0; i < 3; i++ {
		text, err := a.Recognize(context.Background(), frame(10))
		if err != nil || text != "45N/128E" {
			t.Fatalf("Recognize() = (%q, %v)", text, err)
		}
	}
	if e.calls.Load() != 1 {
		t.Errorf("engine calls = %d, want 1", e.calls.Load())
	}
}

// readout draws a coordinate in the top-right corner of a full HD frame and
// runs it through the default preprocessing.
func readout(text string) image.Image {
	frame := image.NewNRGBA(image.Rect(0, 0, 1920, 1080))
	for i := 0; i < len(frame.Pix); i += 4 {
		frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2], frame.Pix[i+3] = 20, 30, 40, 255
	}
	d := &font.Drawer{
		Dst:  frame,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(1720, 50),
	}
	d.DrawString(text)
	return imageproc.DefaultPipeline().Process(frame)
}

func TestRecognizeSeesSingleDigitChange(t *testing.T) {
	pairs := [][2]string{
		{"37N/127E", "87N/127E"},
		{"45N/128E", "45N/129E"},
	}

	for _, p := range pairs {
		t.Run(p[0]+"->"+p[1], func(t *testing.T) {
			e := &fakeEngine{text: "x"}
			a := New((&fakeFactory{engine: e}).create, DefaultOptions())
			_ = a.EnsureReady(context.Background())

			for _, text := range p {
				if _, err := a.Recognize(context.Background(), readout(text)); err != nil {
					t.Fatalf("Recognize(%s) error = %v", text, err)
				}
			}
			if e.calls.Load() != 2 {
				t.Errorf("engine calls = %d, want 2", e.calls.Load())
			}
		})
	}
}

func TestRecognizeReusesIdenticalReadout(t *testing.T) {
	e := &fakeEngine{text: "37N/127E"}
	a := New((&fakeFactory{engine: e}).create, DefaultOptions())
	_ = a.EnsureReady(context.Background())

	for i := 0; i < 2; i++ {
		if _, err := a.Recognize(context.Background(), readout("37N/127E")); err != nil {
			t.Fatalf("Recognize() error = %v", err)
		}
	}
	if e.calls.Load() != 1 {
		t.Errorf("engine calls = %d, want 1", e.calls.Load())
	}
}

func TestRecognizeSimilarityReuseIsOptIn(t *testing.T) {
	e := &fakeEngine{text: "x"}
	opts := DefaultOptions()
	opts.CacheDistance = 64
	a := New((&fakeFactory{engine: e}).create, opts)
	_ = a.EnsureReady(context.Background())

	_, _ = a.Recognize(context.Background(), readout("37N/127E"))
	_, _ = a.Recognize(context.Background(), readout("87N/127E"))
	if e.calls.Load() != 1 {
		t.Errorf("engine calls = %d with distance 64, want 1", e.calls.Load())
	}
}

func TestDigestSubImage(t *testing.T) {
	full := frame(10).(*image.NRGBA)
	sub := full.SubImage(image.Rect(4, 4, 12, 12))
	copyImg := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			copyImg.Set(x, y, sub.At(x+4, y+4))
		}
	}
	if digest(sub) != digest(copyImg) {
		t.Error("digest of a sub-image should match a copy of its pixels")
	}
	if digest(sub) == digest(full) {
		t.Error("digest should differ for different regions")
	}
}

func TestDisposeIdempotent(t *testing.T) {
	e := &fakeEngine{}
	a := New((&fakeFactory{engine: e}).create, noCache())

	if err := a.Dispose(context.Background()); err != nil {
		t.Errorf("Dispose() before init = %v", err)
	}

	_ = a.EnsureReady(context.Background())
	if err := a.Dispose(context.Background()); err != nil {
		t.Errorf("Dispose() = %v", err)
	}
	if err := a.Dispose(context.Background()); err != nil {
		t.Errorf("second Dispose() = %v", err)
	}
	if !e.closed.Load() {
		t.Error("engine should be closed")
	}
	if a.Ready() {
		t.Error("Ready() should be false after Dispose")
	}
	if _, err := a.Recognize(context.Background(), frame(0)); !errors.Is(err, ErrNotReady) {
		t.Errorf("Recognize() after Dispose = %v, want ErrNotReady", err)
	}
}

func TestDisposeWaitsForInit(t *testing.T) {
	e := &fakeEngine{}
	f := &fakeFactory{engine: e, gate: make(chan struct{})}
	a := New(f.create, noCache())

	go func() { _ = a.EnsureReady(context.Background()) }()
	time.Sleep(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- a.Dispose(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Dispose returned before initialization finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(f.gate)
	if err := <-done; err != nil {
		t.Fatalf("Dispose() = %v", err)
	}
	if !e.closed.Load() {
		t.Error("engine created by the awaited init should be closed")
	}
}

func TestDisposeWaitsForRunningJob(t *testing.T) {
	e := &fakeEngine{text: "x", block: make(chan struct{})}
	a := New((&fakeFactory{engine: e}).create, noCache())
	_ = a.EnsureReady(context.Background())

	go func() { _, _ = a.Recognize(context.Background(), frame(0)) }()
	time.Sleep(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- a.Dispose(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	if e.closed.Load() {
		t.Fatal("engine closed while a job was running")
	}

	close(e.block)
	if err := <-done; err != nil {
		t.Fatalf("Dispose() = %v", err)
	}
	if !e.closed.Load() {
		t.Error("engine should be closed after job finished")
	}
}
