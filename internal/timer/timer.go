// internal/timer/timer.go
package timer

import "time"

// Handle refers to a pending callback. Stop reports whether the callback was
// cancelled before it ran.
type Handle interface {
	Stop() bool
}

// Service schedules a callback to run once after a delay without blocking the
// caller. Callbacks run on their own goroutine; anything they touch must do
// its own locking.
type Service interface {
	Schedule(d time.Duration, fn func()) Handle
}

type realService struct{}

// NewService returns the wall-clock Service used in production.
func NewService() Service { return realService{} }

func (realService) Schedule(d time.Duration, fn func()) Handle {
	return realHandle{t: time.AfterFunc(d, fn)}
}

type realHandle struct{ t *time.Timer }

func (h realHandle) Stop() bool { return h.t.Stop() }
