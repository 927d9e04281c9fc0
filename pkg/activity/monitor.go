package activity

import (
	"sync"
	"time"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/clock"
)

// DefaultQuietWindow is how long interaction must stop before scheduling resumes.
const DefaultQuietWindow = time.Second

// Controller is what the Monitor drives; *prefetch.Scheduler satisfies it.
type Controller interface {
	Pause()
	Resume()
	IsLoading() bool
}

// Config tunes a Monitor.
type Config struct {
	QuietWindow time.Duration `mapstructure:"quiet_window" validate:"gt=0" yaml:"quiet_window"`

	// Kinds overrides DefaultKinds when non-empty.
	Kinds []Kind `mapstructure:"kinds" yaml:"kinds"`
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{QuietWindow: DefaultQuietWindow}
}

// Monitor pauses the controller on interaction and resumes it after a
// quiet window with no further interaction.
type Monitor struct {
	src     Source
	ctl     Controller
	clk     clock.Clock
	quiet   time.Duration
	watched map[Kind]bool

	mu          sync.Mutex
	unsubscribe func()
	timer       clock.Timer
	gen         uint64
}

// NewMonitor creates a Monitor. clk may be nil for the system clock.
func NewMonitor(src Source, ctl Controller, clk clock.Clock, config Config) *Monitor {
	if config.QuietWindow <= 0 {
		config.QuietWindow = DefaultQuietWindow
	}
	kinds := config.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	watched := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		watched[k] = true
	}

	return &Monitor{
		src:     src,
		ctl:     ctl,
		clk:     clock.OrReal(clk),
		quiet:   config.QuietWindow,
		watched: watched,
	}
}

// Start subscribes to the source. Calling Start twice is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.src.Subscribe(m.Handle)
}

// Stop unsubscribes and drops a pending resume.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Handle processes one event. It is exported so hosts without a Source can
// feed events directly.
func (m *Monitor) Handle(e Event) {
	if !m.watched[e.Kind] {
		return
	}

	if !m.ctl.IsLoading() {
		m.ctl.Pause()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.timer = m.clk.AfterFunc(m.quiet, func() { m.expire(gen) })

	logger.Debug("Interaction observed", logger.KeyKind, string(e.Kind))
}

// Quiet reports whether no resume is pending.
func (m *Monitor) Quiet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer == nil
}

func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	logger.Debug("Interaction quiet, resuming prefetch")
	m.ctl.Resume()
}
