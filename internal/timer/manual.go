// internal/timer/manual.go
package timer

import (
	"sync"
	"time"
)

// Manual is a Service for tests: scheduled callbacks run only when Fire is
// called, so timer-driven transitions can be stepped deterministically.
type Manual struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	mu      *sync.Mutex // the owning Manual's lock, shared with Fire/Pending
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManual returns an empty Manual service.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Schedule(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{mu: &m.mu, delay: d, fn: fn}
	m.pending = append(m.pending, t)
	return t
}

// FireNext runs the oldest live callback and reports whether one ran.
func (m *Manual) FireNext() bool {
	m.mu.Lock()
	var next *manualTimer
	for _, t := range m.pending {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	m.mu.Unlock()

	if next == nil {
		return false
	}
	next.fn()
	return true
}

// FireAll runs every live callback, including ones scheduled by callbacks it
// fires, and returns how many ran.
func (m *Manual) FireAll() int {
	n := 0
	for m.FireNext() {
		n++
	}
	return n
}

// Pending reports how many callbacks are scheduled and not yet fired or
// stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
