// Package clock provides the time source shared by the cache, the prefetch
// scheduler, the idle host and the activity monitor.
//
// Anything that sleeps, waits or schedules takes a Clock so tests can drive
// it with a fake clock.
package clock

import (
	"github.com/jonboulle/clockwork"
)

// Clock is the injectable time source.
type Clock = clockwork.Clock

// Timer is a cancellable one-shot timer created by Clock.AfterFunc or Clock.NewTimer.
type Timer = clockwork.Timer

// Real returns a Clock backed by the system clock.
func Real() Clock {
	return clockwork.NewRealClock()
}

// OrReal returns c, or the system clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
