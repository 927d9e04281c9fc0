package idle

import (
	"sync"
	"time"

	"github.com/worshipwaves/WDweb-sub002/pkg/clock"
)

// Default TimerHost tuning.
const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultIdleBudget   = 50 * time.Millisecond
)

// BusyFunc reports whether the host is currently doing latency-sensitive work.
type BusyFunc func() bool

// TimerConfig tunes a TimerHost.
type TimerConfig struct {
	// PollInterval is how often the busy probe is sampled.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0" yaml:"poll_interval"`

	// IdleBudget is the remaining time reported to callbacks run in idle time.
	IdleBudget time.Duration `mapstructure:"idle_budget" validate:"gt=0" yaml:"idle_budget"`
}

// DefaultTimerConfig returns the default TimerHost configuration.
func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		PollInterval: DefaultPollInterval,
		IdleBudget:   DefaultIdleBudget,
	}
}

type request struct {
	cb         Callback
	started    time.Time
	forceAfter time.Duration
	timer      clock.Timer
}

// TimerHost is a Host that polls a busy probe on a clock.
type TimerHost struct {
	clk    clock.Clock
	busy   BusyFunc
	config TimerConfig

	mu      sync.Mutex
	next    Handle
	pending map[Handle]*request
}

// NewTimerHost creates a TimerHost. A nil busy probe means the host is
// always idle.
func NewTimerHost(clk clock.Clock, busy BusyFunc, config TimerConfig) *TimerHost {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.IdleBudget <= 0 {
		config.IdleBudget = DefaultIdleBudget
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	return &TimerHost{
		clk:     clock.OrReal(clk),
		busy:    busy,
		config:  config,
		pending: make(map[Handle]*request),
	}
}

// RequestIdle implements Host.
func (t *TimerHost) RequestIdle(cb Callback, forceAfter time.Duration) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next
	req := &request{
		cb:         cb,
		started:    t.clk.Now(),
		forceAfter: forceAfter,
	}
	t.pending[h] = req
	req.timer = t.clk.AfterFunc(t.config.PollInterval, func() { t.poll(h) })
	return h
}

// CancelIdle implements Host.
func (t *TimerHost) CancelIdle(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if req, ok := t.pending[h]; ok {
		req.timer.Stop()
		delete(t.pending, h)
	}
}

// Pending returns the number of outstanding requests.
func (t *TimerHost) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close cancels every outstanding request.
func (t *TimerHost) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for h, req := range t.pending {
		req.timer.Stop()
		delete(t.pending, h)
	}
}

func (t *TimerHost) poll(h Handle) {
	t.mu.Lock()
	req, ok := t.pending[h]
	if !ok {
		t.mu.Unlock()
		return
	}

	var d Deadline
	switch {
	case !t.busy():
		d = Deadline{Remaining: t.config.IdleBudget}
	case req.forceAfter > 0 && t.clk.Since(req.started) >= req.forceAfter:
		d = Deadline{Forced: true}
	default:
		req.timer = t.clk.AfterFunc(t.config.PollInterval, func() { t.poll(h) })
		t.mu.Unlock()
		return
	}

	delete(t.pending, h)
	t.mu.Unlock()

	// The probe can flip between the sample and the callback. Report that as
	// an exhausted budget so the caller backs off instead of competing.
	if !d.Forced && t.busy() {
		d.Remaining = 0
	}
	req.cb(d)
}
