// Package typewriter paces the reveal of streamed text one character at a time.
package typewriter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Wait when the renderer was stopped before the
// displayed text caught up with its target.
var ErrStopped = errors.New("typewriter: stopped")

// Renderer projects a growing target string onto a displayed string that
// advances by one rune every delay. There is at most one timer outstanding.
//
// onUpdate is invoked with the renderer's lock held, on the timer goroutine or
// the SetTarget caller's goroutine. It must not call back into the Renderer.
type Renderer struct {
	mu       sync.Mutex
	delay    time.Duration
	onUpdate func(displayed string)

	target []rune
	shown  int

	timer *time.Timer
	gen   uint64

	idle       chan struct{}
	idleClosed bool
	stopped    chan struct{}
	isStopped  bool
}

// New returns a Renderer that reveals one rune per delay. A delay of zero or
// less reveals each new target immediately. onUpdate may be nil.
func New(delay time.Duration, onUpdate func(displayed string)) *Renderer {
	r := &Renderer{
		delay:    delay,
		onUpdate: onUpdate,
		idle:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	close(r.idle)
	r.idleClosed = true
	return r
}

// SetTarget supersedes the current target. When the text displayed so far is a
// prefix of target the reveal carries on from where it is; otherwise the
// displayed text is cleared and the reveal starts over from the first rune.
func (r *Renderer) SetTarget(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isStopped {
		return
	}

	next := []rune(target)
	if !hasPrefix(next, r.target[:r.shown]) {
		r.cancelTimer()
		r.shown = 0
		r.emit()
	}
	r.target = next

	if r.delay <= 0 {
		if r.shown != len(r.target) {
			r.shown = len(r.target)
			r.emit()
		}
	} else if r.shown < len(r.target) && r.timer == nil {
		r.schedule()
	}
	r.syncIdle()
}

// Displayed returns the currently revealed text.
func (r *Renderer) Displayed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.target[:r.shown])
}

// Target returns the most recent target.
func (r *Renderer) Target() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.target)
}

// CaughtUp reports whether the displayed text equals the target.
func (r *Renderer) CaughtUp() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown == len(r.target)
}

// Wait blocks until the displayed text has caught up with the target, the
// renderer is stopped, or ctx is done.
func (r *Renderer) Wait(ctx context.Context) error {
	r.mu.Lock()
	idle, stopped := r.idle, r.stopped
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the pending timer. No onUpdate call happens after Stop returns.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isStopped {
		return
	}
	r.isStopped = true
	r.cancelTimer()
	close(r.stopped)
}

func (r *Renderer) tick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isStopped || gen != r.gen {
		return
	}
	r.timer = nil
	if r.shown >= len(r.target) {
		return
	}

	r.shown++
	r.emit()
	r.syncIdle()
	if r.shown < len(r.target) {
		r.schedule()
	}
}

func (r *Renderer) schedule() {
	gen := r.gen
	r.timer = time.AfterFunc(r.delay, func() { r.tick(gen) })
}

// cancelTimer stops the pending timer and invalidates a callback that may
// already be waiting for the lock.
func (r *Renderer) cancelTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
}

func (r *Renderer) emit() {
	if r.onUpdate != nil {
		r.onUpdate(string(r.target[:r.shown]))
	}
}

func (r *Renderer) syncIdle() {
	caughtUp := r.shown >= len(r.target)
	switch {
	case caughtUp && !r.idleClosed:
		close(r.idle)
		r.idleClosed = true
	case !caughtUp && r.idleClosed:
		r.idle = make(chan struct{})
		r.idleClosed = false
	}
}

func hasPrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}
