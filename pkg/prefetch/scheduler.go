// Package prefetch drains a priority-ordered backlog of catalog jobs into
// the asset cache during host-reported idle time.
//
// At most one scheduled job loads at a time. Each job warms its key bundle
// through the cache and waits for it with a timeout; a job that times out is
// abandoned (the wait stops, the fetch keeps running in the cache and is
// neither re-queued nor retried). Pause suppresses future scheduling without
// touching the job in flight. LoadImmediate bypasses the backlog and may
// overlap a scheduled job; the cache's per-key dedupe keeps that safe.
package prefetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/internal/telemetry"
	"github.com/worshipwaves/WDweb-sub002/pkg/cache"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/clock"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle"
)

var errJobTimeout = errors.New("prefetch job timed out")

// Scheduler is the prefetch scheduler. It is safe for concurrent use.
type Scheduler struct {
	catalog *catalog.Catalog
	cache   Cache
	host    idle.Host
	clk     clock.Clock
	config  Config
	metrics Metrics

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup

	mu      sync.Mutex
	backlog []catalog.Job
	started bool
	stopped bool
	paused  bool
	loading bool

	// Outstanding idle request; zero when none. gen tags the request so a
	// callback that races a cancel is recognised as stale.
	scheduled idle.Handle
	gen       uint64

	// Retry timer armed after a callback with no idle budget.
	backoff    clock.Timer
	backoffGen uint64

	listeners    map[int]func(Status)
	nextListener int
}

// New creates a scheduler over cat that loads through c and schedules on
// host. clk may be nil for the system clock; m may be nil.
func New(cat *catalog.Catalog, c Cache, host idle.Host, clk clock.Clock, config Config, m Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		catalog:   cat,
		cache:     c,
		host:      host,
		clk:       clock.OrReal(clk),
		config:    config.withDefaults(),
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]func(Status)),
	}
}

// Start seeds the backlog with every catalog job after the first skipCount,
// which are assumed to have been warmed already, and begins scheduling.
// Calling Start again is a no-op.
func (s *Scheduler) Start(skipCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		logger.Debug("Prefetch scheduler already started")
		return
	}
	s.started = true

	jobs := s.catalog.Jobs()
	if skipCount < 0 {
		skipCount = 0
	}
	if skipCount > len(jobs) {
		skipCount = len(jobs)
	}
	s.backlog = jobs[skipCount:]
	s.setBacklogMetricLocked()

	logger.Info("Prefetch scheduler started",
		logger.KeyTotal, len(jobs),
		"skipped", skipCount,
		logger.KeyRemaining, len(s.backlog))

	s.scheduleLocked()
}

// Pause suppresses future scheduling and withdraws any pending idle request
// or retry. A job already loading runs to completion. Idempotent.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return
	}
	s.paused = true
	s.cancelPendingLocked()
	logger.Debug("Prefetch scheduler paused", logger.KeyState, s.stateLocked().String())
}

// Resume lifts a pause and schedules the next job if nothing is loading or
// pending. Idempotent.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		s.paused = false
		logger.Debug("Prefetch scheduler resumed")
	}
	s.scheduleLocked()
}

// LoadImmediate loads one item right away, independent of the scheduler
// state. If the item is still queued it is taken out of the backlog first.
//
// An id that is not in the catalog is logged and ignored: LoadImmediate
// returns nil. Otherwise it returns nil once every key of the item is ready,
// the cache's *FetchError if a key failed or ctx.Err() if ctx ends first.
func (s *Scheduler) LoadImmediate(ctx context.Context, id string) error {
	job, ok := s.catalog.Job(id)
	if !ok {
		logger.WarnCtx(ctx, "Immediate load of unknown catalog item ignored", logger.ItemID(id))
		return nil
	}

	s.mu.Lock()
	removed := s.removeLocked(id)
	s.mu.Unlock()

	start := s.clk.Now()
	ctx, span := telemetry.StartJobSpan(ctx, telemetry.SpanLoadImmediate, id, OriginImmediate)
	defer span.End()

	err := s.waitBundle(ctx, job)
	outcome := classify(ctx, err)
	span.SetAttributes(telemetry.JobOutcome(outcome))
	s.observeJob(OriginImmediate, outcome, start)
	s.logOutcome(ctx, outcome, err, start)

	if removed {
		s.emit(s.Status())
	}
	return err
}

// IsLoaded reports whether every key of the item has a record in the cache.
func (s *Scheduler) IsLoaded(id string) bool {
	job, ok := s.catalog.Job(id)
	if !ok {
		return false
	}
	for _, key := range job.Keys {
		if !s.cache.Contains(key) {
			return false
		}
	}
	return true
}

// Status returns the current progress.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// IsLoading reports whether a scheduled job is in flight.
func (s *Scheduler) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Backlog returns the ids still queued, front first.
func (s *Scheduler) Backlog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.backlog))
	for i, job := range s.backlog {
		ids[i] = job.ItemID
	}
	return ids
}

// OnProgress registers fn. It is called once right away with the current
// status, then after every completed or abandoned job. The returned func
// unregisters fn.
func (s *Scheduler) OnProgress(fn func(Status)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	status := s.statusLocked()
	s.mu.Unlock()

	fn(status)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Stop withdraws pending requests, stops accepting scheduled work and waits
// for the job in flight to finish or give up.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cancelPendingLocked()
	s.mu.Unlock()

	s.cancel()
	s.jobs.Wait()
}

// scheduleLocked requests an idle callback unless one is pending, a job is
// loading, the scheduler is paused or stopped, or there is nothing to do.
func (s *Scheduler) scheduleLocked() {
	if s.stopped || s.paused || s.loading || s.scheduled != 0 || s.backoff != nil || len(s.backlog) == 0 {
		return
	}

	s.gen++
	gen := s.gen
	s.scheduled = s.host.RequestIdle(func(d idle.Deadline) { s.onIdle(gen, d) }, s.config.ForceAfter)
}

func (s *Scheduler) onIdle(gen uint64, d idle.Deadline) {
	s.mu.Lock()

	if s.scheduled == 0 || gen != s.gen {
		s.mu.Unlock()
		s.recordIdle(IdleStale)
		return
	}
	s.scheduled = 0

	if s.stopped || s.paused || s.loading || len(s.backlog) == 0 {
		s.mu.Unlock()
		s.recordIdle(IdleStale)
		return
	}

	// Forced callbacks always proceed, so ForceAfter bounds the wait.
	if d.TimeRemaining() <= 0 && !d.DidTimeout() {
		s.backoffGen++
		bgen := s.backoffGen
		s.backoff = s.clk.AfterFunc(s.config.RetryBackoff, func() { s.onBackoff(bgen) })
		s.mu.Unlock()
		s.recordIdle(IdleBackoff)
		return
	}

	job := s.backlog[0]
	s.backlog = s.backlog[1:]
	s.loading = true
	s.setBacklogMetricLocked()
	s.jobs.Add(1)
	s.mu.Unlock()

	s.recordIdle(IdleProceed)
	go s.runJob(job, d.DidTimeout())
}

func (s *Scheduler) onBackoff(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backoff == nil || gen != s.backoffGen {
		return
	}
	s.backoff = nil
	s.scheduleLocked()
}

// runJob waits for one scheduled job's bundle, bounded by JobTimeout.
func (s *Scheduler) runJob(job catalog.Job, forced bool) {
	defer s.jobs.Done()

	start := s.clk.Now()
	ctx, cancel := context.WithCancelCause(s.ctx)
	defer cancel(nil)

	timer := s.clk.AfterFunc(s.config.JobTimeout, func() { cancel(errJobTimeout) })
	defer timer.Stop()

	ctx, span := telemetry.StartJobSpan(ctx, telemetry.SpanPrefetchJob, job.ItemID, OriginIdle)
	err := s.waitBundle(ctx, job)
	outcome := classify(ctx, err)
	span.SetAttributes(telemetry.JobOutcome(outcome))
	span.End()

	s.observeJob(OriginIdle, outcome, start)
	s.logOutcome(ctx, outcome, err, start, "forced", forced)

	s.mu.Lock()
	s.loading = false
	status := s.statusLocked()
	s.mu.Unlock()

	s.emit(status)

	s.mu.Lock()
	s.scheduleLocked()
	s.mu.Unlock()
}

// waitBundle warms every key of job and waits until all are resolved.
func (s *Scheduler) waitBundle(ctx context.Context, job catalog.Job) error {
	for _, key := range job.Keys {
		s.cache.EnsureCached(key)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range job.Keys {
		g.Go(func() error {
			return s.cache.WaitUntilReady(gctx, key)
		})
	}
	return g.Wait()
}

func classify(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(context.Cause(ctx), errJobTimeout):
		return OutcomeAbandoned
	case errors.Is(err, cache.ErrFetchFailed):
		return OutcomeFailed
	default:
		return OutcomeStopped
	}
}

func (s *Scheduler) logOutcome(ctx context.Context, outcome string, err error, start time.Time, extra ...any) {
	// Item and origin come from the job span's log context.
	args := append([]any{
		logger.KeyDurationMs, float64(s.clk.Since(start).Microseconds()) / 1000.0,
	}, extra...)

	switch outcome {
	case OutcomeCompleted:
		logger.InfoCtx(ctx, "Prefetch job completed", args...)
	case OutcomeAbandoned:
		args = append(args, logger.KeyTimeout, s.config.JobTimeout)
		logger.WarnCtx(ctx, "Prefetch job timed out, abandoned", args...)
	case OutcomeFailed:
		args = append(args, logger.Err(err))
		logger.WarnCtx(ctx, "Prefetch job failed", args...)
	default:
		args = append(args, logger.Err(err))
		logger.DebugCtx(ctx, "Prefetch job interrupted", args...)
	}
}

func (s *Scheduler) removeLocked(id string) bool {
	for i, job := range s.backlog {
		if job.ItemID == id {
			backlog := make([]catalog.Job, 0, len(s.backlog)-1)
			backlog = append(backlog, s.backlog[:i]...)
			s.backlog = append(backlog, s.backlog[i+1:]...)
			s.setBacklogMetricLocked()
			s.cancelIfDrainedLocked()
			return true
		}
	}
	return false
}

// cancelIfDrainedLocked withdraws a pending request once the backlog is empty.
func (s *Scheduler) cancelIfDrainedLocked() {
	if len(s.backlog) == 0 {
		s.cancelPendingLocked()
	}
}

func (s *Scheduler) cancelPendingLocked() {
	if s.scheduled != 0 {
		s.host.CancelIdle(s.scheduled)
		s.scheduled = 0
	}
	if s.backoff != nil {
		s.backoff.Stop()
		s.backoff = nil
	}
}

func (s *Scheduler) statusLocked() Status {
	total := s.catalog.Len()
	remaining := len(s.backlog)
	if s.loading {
		remaining++
	}
	return Status{Total: total, Loaded: total - remaining, Remaining: remaining}
}

func (s *Scheduler) stateLocked() State {
	switch {
	case s.loading:
		return StateLoading
	case s.paused:
		return StatePaused
	case s.scheduled != 0 || s.backoff != nil:
		return StateScheduled
	case len(s.backlog) > 0:
		return StateIdle
	default:
		return StateDrained
	}
}

func (s *Scheduler) emit(status Status) {
	s.mu.Lock()
	fns := make([]func(Status), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}

func (s *Scheduler) setBacklogMetricLocked() {
	if s.metrics != nil {
		s.metrics.SetBacklog(len(s.backlog))
	}
}

func (s *Scheduler) observeJob(origin, outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveJob(origin, outcome, s.clk.Since(start))
	}
}

func (s *Scheduler) recordIdle(decision string) {
	if s.metrics != nil {
		s.metrics.RecordIdleCallback(decision)
	}
}
