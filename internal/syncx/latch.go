package syncx

import (
	"context"
	"sync"
)

// Latch is a non-blocking single-holder flag. The zero value is free.
type Latch struct {
	mu       sync.Mutex
	held     bool
	released chan struct{}
}

// TryAcquire takes the latch, returning false if it is already held.
func (l *Latch) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false
	}
	l.held = true
	l.released = make(chan struct{})
	return true
}

// Release frees the latch.
func (l *Latch) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		l.held = false
		close(l.released)
	}
}

// Held reports whether the latch is currently taken.
func (l *Latch) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Wait blocks until the current holder releases the latch. It returns
// immediately when the latch is free.
func (l *Latch) Wait(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		return nil
	}
	ch := l.released
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
