// Package idletest provides a manually driven idle.Host for tests.
package idletest

import (
	"sync"
	"time"

	"github.com/worshipwaves/WDweb-sub002/pkg/idle"
)

// Request is one recorded RequestIdle call.
type Request struct {
	Handle     idle.Handle
	ForceAfter time.Duration
	Cancelled  bool
	Fired      bool

	cb idle.Callback
}

// Host records requests and runs callbacks only when told to.
type Host struct {
	mu       sync.Mutex
	next     idle.Handle
	requests []*Request
	changed  chan struct{}
}

// New creates an empty fake host.
func New() *Host {
	return &Host{changed: make(chan struct{})}
}

// RequestIdle implements idle.Host.
func (h *Host) RequestIdle(cb idle.Callback, forceAfter time.Duration) idle.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	h.requests = append(h.requests, &Request{Handle: h.next, ForceAfter: forceAfter, cb: cb})
	h.notifyLocked()
	return h.next
}

// CancelIdle implements idle.Host.
func (h *Host) CancelIdle(handle idle.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range h.requests {
		if r.Handle == handle && !r.Fired {
			r.Cancelled = true
		}
	}
	h.notifyLocked()
}

// Requests returns the number of RequestIdle calls made so far.
func (h *Host) Requests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

// Pending returns the number of requests neither fired nor cancelled.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, r := range h.requests {
		if !r.Fired && !r.Cancelled {
			n++
		}
	}
	return n
}

// Cancelled returns the number of cancelled requests.
func (h *Host) Cancelled() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, r := range h.requests {
		if r.Cancelled {
			n++
		}
	}
	return n
}

// Last returns a copy of the most recent request.
func (h *Host) Last() (Request, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.requests) == 0 {
		return Request{}, false
	}
	return *h.requests[len(h.requests)-1], true
}

// Fire runs the oldest pending callback with the given deadline on the
// calling goroutine. It returns false if nothing is pending.
func (h *Host) Fire(d idle.Deadline) bool {
	h.mu.Lock()
	var target *Request
	for _, r := range h.requests {
		if !r.Fired && !r.Cancelled {
			target = r
			break
		}
	}
	if target == nil {
		h.mu.Unlock()
		return false
	}
	target.Fired = true
	h.notifyLocked()
	h.mu.Unlock()

	target.cb(d)
	return true
}

// FireIdle fires the oldest pending callback with a positive idle budget.
func (h *Host) FireIdle() bool {
	return h.Fire(idle.Deadline{Remaining: 50 * time.Millisecond})
}

// FireBusy fires the oldest pending callback with no idle budget left.
func (h *Host) FireBusy() bool {
	return h.Fire(idle.Deadline{})
}

// FireForced fires the oldest pending callback as if forceAfter elapsed.
func (h *Host) FireForced() bool {
	return h.Fire(idle.Deadline{Forced: true})
}

// WaitPending blocks until exactly n requests are pending or timeout elapses.
func (h *Host) WaitPending(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		h.mu.Lock()
		changed := h.changed
		h.mu.Unlock()

		if h.Pending() == n {
			return true
		}

		select {
		case <-changed:
		case <-deadline:
			return h.Pending() == n
		}
	}
}

func (h *Host) notifyLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}
