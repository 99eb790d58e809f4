package pbx

import (
	"runtime"
	"time"
)

// Clock is the time source of a Driver.
type Clock interface {
	// Now returns a monotonic timestamp relative to an arbitrary epoch.
	Now() time.Duration
	// Yield gives the processor away for one scheduling round.
	Yield()
}

type systemClock struct {
	epoch time.Time
}

// SystemClock returns a Clock backed by the runtime's monotonic clock.
// Yield is runtime.Gosched, not a sleep, so waits are not overshot by the
// timer granularity of the OS.
func SystemClock() Clock {
	return systemClock{epoch: time.Now()}
}

func (c systemClock) Now() time.Duration { return time.Since(c.epoch) }
func (systemClock) Yield()               { runtime.Gosched() }

// SpinUntil yields until c reaches deadline.
func SpinUntil(c Clock, deadline time.Duration) {
	for c.Now() < deadline {
		c.Yield()
	}
}
