// Package tracker decides when a recognized coordinate is trustworthy enough
// to submit. Readings near the last accepted position are taken as they come;
// a jump elsewhere must repeat before it is believed.
package tracker

import (
	"sync"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
)

// SubmitFunc pushes an accepted coordinate downstream and reports success.
type SubmitFunc func(coords.Coordinate) bool

// Decision is the outcome of one observation.
type Decision int

const (
	Accepted  Decision = iota // in the vicinity of the last accepted reading, or the first one
	Confirmed                 // an outlier repeated enough times and was accepted
	Held                      // an outlier was recorded, nothing submitted
	Failed                    // acceptance was due but submission failed
	Dropped                   // the tracker changed during submission; nothing recorded
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Confirmed:
		return "confirmed"
	case Held:
		return "held"
	case Failed:
		return "failed"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Candidate is a run of readings that disagree with the last accepted one
// but agree with each other.
type Candidate struct {
	Coordinate coords.Coordinate `json:"coordinate"`
	Count      int               `json:"count"`
}

// Tracker holds the last accepted coordinate and the pending outlier.
type Tracker struct {
	tolerance     int
	confirmations int

	mu      sync.Mutex
	last    *coords.Coordinate
	pending *Candidate
	gen     uint64 // bumped on every change
}

// New creates a tracker. Non-positive confirmations default to
// DefaultConfirmations; negative tolerance defaults to DefaultTolerance.
func New(tolerance, confirmations int) *Tracker {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	if confirmations < 1 {
		confirmations = DefaultConfirmations
	}
	return &Tracker{tolerance: tolerance, confirmations: confirmations}
}

// Observe feeds one reading through the state machine. submit is called at
// most once and without the tracker lock held, so readers are never blocked
// behind a slow submission. State only advances to an accepted value when
// submit returns true and nothing else changed the tracker in the meantime;
// otherwise the result is Dropped.
func (t *Tracker) Observe(next coords.Coordinate, submit SubmitFunc) Decision {
	t.mu.Lock()
	target, win := next, Accepted
	if t.last != nil && !coords.WithinTolerance(*t.last, next, t.tolerance) {
		candidate := Candidate{Coordinate: next, Count: 1}
		if t.pending != nil && coords.WithinTolerance(t.pending.Coordinate, next, t.tolerance) {
			candidate.Count = t.pending.Count + 1
		}
		t.pending = &candidate
		t.gen++
		if candidate.Count < t.confirmations {
			t.mu.Unlock()
			return Held
		}
		target, win = candidate.Coordinate, Confirmed
	}
	gen := t.gen
	t.mu.Unlock()

	ok := submit(target)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return Dropped
	}
	if !ok {
		return Failed
	}
	t.accept(target)
	return win
}

func (t *Tracker) accept(c coords.Coordinate) {
	t.last = &c
	t.pending = nil
	t.gen++
}

// Last returns the last accepted coordinate.
func (t *Tracker) Last() (coords.Coordinate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return coords.Coordinate{}, false
	}
	return *t.last, true
}

// Pending returns the current outlier candidate.
func (t *Tracker) Pending() (Candidate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return Candidate{}, false
	}
	return *t.pending, true
}

// Reset clears all state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.last = nil
	t.pending = nil
	t.gen++
	t.mu.Unlock()
}
