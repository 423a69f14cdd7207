package viewer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cancel stops a scheduled callback. Calling it more than once is safe.
type Cancel func()

// Scheduler arms cancellable one-shot and repeating callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Cancel
	Every(d time.Duration, fn func()) Cancel
}

// ClockScheduler runs callbacks off a clockwork clock.
type ClockScheduler struct {
	clock clockwork.Clock
}

func NewClockScheduler(clock clockwork.Clock) *ClockScheduler {
	return &ClockScheduler{clock: clock}
}

var _ Scheduler = (*ClockScheduler)(nil)

func (s *ClockScheduler) AfterFunc(d time.Duration, fn func()) Cancel {
	t := s.clock.AfterFunc(max(d, 0), fn)
	return func() { t.Stop() }
}

func (s *ClockScheduler) Every(d time.Duration, fn func()) Cancel {
	ticker := s.clock.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
