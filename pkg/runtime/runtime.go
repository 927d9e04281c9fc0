// Package runtime assembles the asset cache, prefetch scheduler and activity
// monitor from configuration and runs them alongside the HTTP API.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/activity"
	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
	"github.com/worshipwaves/WDweb-sub002/pkg/cache"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/clock"
	"github.com/worshipwaves/WDweb-sub002/pkg/config"
	"github.com/worshipwaves/WDweb-sub002/pkg/decode"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle"
	metricsprom "github.com/worshipwaves/WDweb-sub002/pkg/metrics/prometheus"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// AuxiliaryServer is an HTTP server managed alongside the engine.
type AuxiliaryServer interface {
	// Start starts the server and blocks until ctx is cancelled or it fails.
	Start(ctx context.Context) error
	// Stop initiates graceful shutdown.
	Stop(ctx context.Context) error
	// Port returns the TCP port the server is listening on.
	Port() int
}

// Option overrides a component New would otherwise build from config.
type Option func(*Runtime)

// WithClock sets the clock every timer in the runtime uses.
func WithClock(clk clock.Clock) Option {
	return func(r *Runtime) { r.clock = clk }
}

// WithStore supplies the byte store instead of building one from config.
// The runtime takes ownership and closes it.
func WithStore(s store.Store) Option {
	return func(r *Runtime) { r.store = s }
}

// WithCatalog supplies the catalog instead of loading config.Catalog.Path.
func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Runtime) { r.catalog = c }
}

// WithIdleHost supplies the idle host instead of a TimerHost driven by the
// in-flight request counter.
func WithIdleHost(h idle.Host) Option {
	return func(r *Runtime) { r.host = h }
}

// Runtime owns every long-lived component of an assetd process.
type Runtime struct {
	session string
	cfg     *config.Config
	clock   clock.Clock

	store     store.Store
	catalog   *catalog.Catalog
	cache     *cache.Cache
	host      idle.Host
	timerHost *idle.TimerHost
	scheduler *prefetch.Scheduler
	events    *activity.Broadcaster
	monitor   *activity.Monitor

	inflight atomic.Int64

	apiServer AuxiliaryServer

	mu        sync.Mutex
	started   bool
	closed    bool
	serveOnce sync.Once
}

// New builds a runtime from cfg. Nothing runs until Start or Serve.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		session: uuid.NewString(),
		cfg:     cfg,
		events:  activity.NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.clock = clock.OrReal(r.clock)

	ctx = logger.WithContext(ctx, logger.NewLogContext(r.session))

	if r.catalog == nil {
		cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		r.catalog = cat
	}

	if r.store == nil {
		s, err := config.CreateStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		r.store = s
	}

	loader := asset.NewLoader(r.store, decode.New(cfg.Decode))
	r.cache = cache.New(loader, cfg.Cache, metricsprom.NewCacheMetrics())

	if r.host == nil {
		r.timerHost = idle.NewTimerHost(r.clock, r.Busy, cfg.Idle)
		r.host = r.timerHost
	}

	r.scheduler = prefetch.New(r.catalog, r.cache, r.host, r.clock, cfg.Prefetch, metricsprom.NewSchedulerMetrics())
	r.monitor = activity.NewMonitor(r.events, r.scheduler, r.clock, cfg.Activity)

	logger.InfoCtx(ctx, "Runtime assembled",
		logger.KeyTotal, r.catalog.Len(),
		logger.StoreType(cfg.Store.Type),
		"local_tier", cfg.Store.Local.Enabled)

	return r, nil
}

// Session returns the identifier attached to this runtime's log lines.
func (r *Runtime) Session() string { return r.session }

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *config.Config { return r.cfg }

// Catalog returns the prefetch catalog.
func (r *Runtime) Catalog() *catalog.Catalog { return r.catalog }

// Cache returns the asset cache.
func (r *Runtime) Cache() *cache.Cache { return r.cache }

// Scheduler returns the prefetch scheduler.
func (r *Runtime) Scheduler() *prefetch.Scheduler { return r.scheduler }

// Events returns the interaction stream the activity monitor listens to.
func (r *Runtime) Events() *activity.Broadcaster { return r.events }

// Store returns the byte store.
func (r *Runtime) Store() store.Store { return r.store }

// Context returns ctx carrying this runtime's log context.
func (r *Runtime) Context(ctx context.Context) context.Context {
	return logger.WithContext(ctx, logger.NewLogContext(r.session))
}

// BeginRequest marks foreground work in flight until the returned func is
// called. While any is in flight the idle host reports busy.
func (r *Runtime) BeginRequest() (done func()) {
	r.inflight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { r.inflight.Add(-1) })
	}
}

// Busy reports whether foreground work is in flight.
func (r *Runtime) Busy() bool {
	return r.inflight.Load() > 0
}

// SetAPIServer registers the HTTP API served by Serve.
func (r *Runtime) SetAPIServer(server AuxiliaryServer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiServer = server
}

// Start begins activity monitoring and prefetching, treating the first
// config.Catalog.Skip items as already loaded. Later calls are no-ops.
func (r *Runtime) Start() {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	r.monitor.Start()
	r.scheduler.Start(r.cfg.Catalog.Skip)

	status := r.scheduler.Status()
	logger.Info("Prefetch started",
		logger.KeySession, r.session,
		logger.KeyTotal, status.Total,
		logger.KeyRemaining, status.Remaining)
}

// Serve starts the engine and the API server, then blocks until ctx is
// cancelled or the API server fails. It shuts everything down before
// returning. Serve runs at most once.
func (r *Runtime) Serve(ctx context.Context) error {
	err := errors.New("runtime already served")
	r.serveOnce.Do(func() {
		err = r.serve(ctx)
	})
	return err
}

func (r *Runtime) serve(ctx context.Context) error {
	logger.Info("Starting assetd runtime", logger.KeySession, r.session)

	r.Start()

	r.mu.Lock()
	apiServer := r.apiServer
	r.mu.Unlock()

	apiErrChan := make(chan error, 1)
	if apiServer != nil {
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("API server error", logger.Err(err))
				apiErrChan <- err
			}
		}()
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
		shutdownErr = ctx.Err()
	case err := <-apiErrChan:
		logger.Error("API server failed - initiating shutdown", logger.Err(err))
		shutdownErr = fmt.Errorf("API server error: %w", err)
	}

	if apiServer != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout())
		if err := apiServer.Stop(stopCtx); err != nil {
			logger.Warn("Error stopping API server", logger.Err(err))
		}
		cancel()
	}

	if err := r.Close(); err != nil {
		logger.Warn("Error during shutdown", logger.Err(err))
	}

	logger.Info("assetd runtime stopped")
	return shutdownErr
}

// Close stops the monitor and scheduler, disposes the cache and closes the
// store. It is safe to call more than once.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	logger.Debug("Stopping activity monitor")
	r.monitor.Stop()

	logger.Debug("Stopping prefetch scheduler")
	r.scheduler.Stop()

	if r.timerHost != nil {
		r.timerHost.Close()
	}

	stats := r.cache.Stats()
	r.cache.Dispose()
	r.cache.Wait()
	logger.Info("Asset cache disposed",
		"ready", stats.Ready,
		"failed", stats.Failed,
		"loading", stats.Loading)

	if err := r.store.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

func (r *Runtime) shutdownTimeout() time.Duration {
	if r.cfg.ShutdownTimeout > 0 {
		return r.cfg.ShutdownTimeout
	}
	return DefaultShutdownTimeout
}
