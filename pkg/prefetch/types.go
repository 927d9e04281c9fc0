package prefetch

import (
	"context"
	"fmt"
	"time"

	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
)

// Default timing policy.
const (
	// DefaultForceAfter is how long an idle request may wait for real idle
	// time before the host runs it anyway.
	DefaultForceAfter = 2 * time.Second

	// DefaultJobTimeout bounds how long the scheduler waits for one job's
	// key bundle. It is longer than DefaultForceAfter and covers a full
	// network fetch.
	DefaultJobTimeout = 15 * time.Second

	// DefaultRetryBackoff is the delay before asking for idle time again
	// after a callback reported no idle budget.
	DefaultRetryBackoff = 100 * time.Millisecond
)

// Config holds the scheduler timing policy.
type Config struct {
	ForceAfter   time.Duration `mapstructure:"force_after" validate:"gt=0" yaml:"force_after"`
	JobTimeout   time.Duration `mapstructure:"job_timeout" validate:"gt=0" yaml:"job_timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gt=0" yaml:"retry_backoff"`
}

// DefaultConfig returns the default timing policy.
func DefaultConfig() Config {
	return Config{
		ForceAfter:   DefaultForceAfter,
		JobTimeout:   DefaultJobTimeout,
		RetryBackoff: DefaultRetryBackoff,
	}
}

func (c Config) withDefaults() Config {
	if c.ForceAfter <= 0 {
		c.ForceAfter = DefaultForceAfter
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	return c
}

// State is the scheduler's externally visible state.
type State int

const (
	// StateDrained: not started, or nothing left to load.
	StateDrained State = iota
	// StateIdle: work queued, nothing requested, nothing loading.
	StateIdle
	// StateScheduled: an idle callback (or its retry backoff) is pending.
	StateScheduled
	// StateLoading: one scheduled job is being waited on.
	StateLoading
	// StatePaused: future scheduling is suppressed.
	StatePaused
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDrained:
		return "drained"
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateLoading:
		return "loading"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a progress snapshot. Loaded + Remaining == Total always holds.
type Status struct {
	Total     int `json:"total"`
	Loaded    int `json:"loaded"`
	Remaining int `json:"remaining"`
}

// Done reports whether nothing is left to load.
func (s Status) Done() bool { return s.Remaining == 0 }

// Job outcomes, as passed to Metrics.ObserveJob.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
	OutcomeStopped   = "stopped"
)

// Job origins.
const (
	OriginIdle      = "idle"
	OriginImmediate = "immediate"
)

// Idle callback decisions, as passed to Metrics.RecordIdleCallback.
const (
	IdleProceed = "proceed"
	IdleBackoff = "backoff"
	IdleStale   = "stale"
)

// Cache is the part of the asset cache the scheduler drives.
type Cache interface {
	EnsureCached(key asset.Key)
	WaitUntilReady(ctx context.Context, key asset.Key) error
	Contains(key asset.Key) bool
}

// Metrics receives scheduler instrumentation. A nil Metrics is valid.
type Metrics interface {
	ObserveJob(origin, outcome string, duration time.Duration)
	SetBacklog(n int)
	RecordIdleCallback(decision string)
}
