// Package idle defines the idle-time primitive the prefetch scheduler runs
// on: "call me when the host is idle, or forcibly after a timeout", plus a
// cancel operation.
//
// TimerHost is the in-process implementation. It polls a busy probe on a
// clock and reports an idle budget when the probe goes quiet. If the probe
// turns busy again before the callback runs, the callback sees a zero
// budget. Forced callbacks always see a zero budget.
package idle

import (
	"time"
)

// Deadline is what a callback learns about the idle window it was invoked in.
type Deadline struct {
	// Remaining is the host's estimate of idle time left.
	Remaining time.Duration

	// Forced is set when the callback ran because forceAfter elapsed, not
	// because the host went idle.
	Forced bool
}

// TimeRemaining returns the remaining idle budget.
func (d Deadline) TimeRemaining() time.Duration { return d.Remaining }

// DidTimeout reports whether the callback was forced by the timeout.
func (d Deadline) DidTimeout() bool { return d.Forced }

// Callback is invoked at most once per request.
type Callback func(Deadline)

// Handle identifies an outstanding request. The zero Handle is never issued.
type Handle uint64

// Host schedules idle callbacks.
type Host interface {
	// RequestIdle schedules cb to run when the host is idle, or after
	// forceAfter at the latest. forceAfter <= 0 means no forced run.
	RequestIdle(cb Callback, forceAfter time.Duration) Handle

	// CancelIdle withdraws a request that has not run yet. Cancelling an
	// unknown or already-run handle is a no-op.
	CancelIdle(h Handle)
}
