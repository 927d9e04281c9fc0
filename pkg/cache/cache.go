// Package cache implements the asset cache: a keyed set of load records that
// deduplicates concurrent requests and hands out independent views over
// shared decoded surfaces.
//
// One record exists per key for the lifetime of the cache. The first Get or
// EnsureCached for a key inserts the record and starts exactly one
// fetch-and-decode; every later caller shares that record, whether it is
// still loading, ready or failed. Failed records are terminal and are not
// retried. Records are never evicted individually; Dispose drops them all.
//
// Fetches run under the cache's own lifetime context rather than a caller's,
// because a single fetch is shared by every consumer of the key. Config.FetchTimeout
// bounds a single fetch; Dispose aborts all of them.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/internal/telemetry"
	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
)

var errNoSurface = errors.New("loader returned no surface")

// Cache is the asset cache. It is safe for concurrent use.
type Cache struct {
	loader  asset.Loader
	config  Config
	metrics Metrics

	// mu guards records, ctx and cancel. The miss check and the insert of a
	// new record happen under one critical section, before the fetch starts.
	mu      sync.Mutex
	records map[asset.Key]*Handle
	ctx     context.Context
	cancel  context.CancelFunc

	fetches sync.WaitGroup
}

// New creates a cache that resolves misses with loader. metrics may be nil.
func New(loader asset.Loader, config Config, metrics Metrics) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		loader:  loader,
		config:  config,
		metrics: metrics,
		records: make(map[asset.Key]*Handle),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Get returns a fresh view over the record for key, starting the fetch on a
// miss. It never blocks on the fetch: the view may still be loading.
func (c *Cache) Get(key asset.Key) *View {
	return newView(c.acquire(key))
}

// EnsureCached makes sure a record exists for key, starting the fetch on a
// miss, without creating a view.
func (c *Cache) EnsureCached(key asset.Key) {
	c.acquire(key)
}

// WaitUntilReady blocks until the record for key leaves StateLoading.
//
// It returns nil once the record is Ready, the recorded *FetchError if it
// Failed, ErrNotCached if no record exists and ctx.Err() if ctx ends first.
func (c *Cache) WaitUntilReady(ctx context.Context, key asset.Key) error {
	c.mu.Lock()
	h, ok := c.records[key]
	c.mu.Unlock()

	if !ok {
		return ErrNotCached
	}
	return h.Wait(ctx)
}

// Lookup returns the record for key without creating one.
func (c *Cache) Lookup(key asset.Key) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.records[key]
	return h, ok
}

// Contains reports whether a record exists for key, in any state.
func (c *Cache) Contains(key asset.Key) bool {
	_, ok := c.Lookup(key)
	return ok
}

// State returns the state of the record for key.
func (c *Cache) State(key asset.Key) (State, bool) {
	h, ok := c.Lookup(key)
	if !ok {
		return 0, false
	}
	return h.State(), true
}

// Len returns the number of records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Stats counts records by state.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.records))
	for _, h := range c.records {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	var s Stats
	for _, h := range handles {
		switch h.State() {
		case StateLoading:
			s.Loading++
		case StateReady:
			s.Ready++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}

// Dispose releases every surface and drops every record. Fetches still in
// flight are cancelled and their handles fail with ErrDisposed.
//
// Dispose is not meant to run while consumers are still loading through
// the cache; the caller is responsible for quiescing them first. The cache
// can be used again afterwards and starts a fresh lifetime.
func (c *Cache) Dispose() {
	c.mu.Lock()
	records := c.records
	c.records = make(map[asset.Key]*Handle)
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	for _, h := range records {
		h.release()
	}

	if c.metrics != nil {
		c.metrics.RecordDispose(len(records))
	}
	logger.Debug("Asset cache disposed", logger.KeyTotal, len(records))
}

// Wait blocks until every fetch started so far has finished.
func (c *Cache) Wait() {
	c.fetches.Wait()
}

// acquire returns the record for key, inserting it and starting the fetch on
// a miss.
func (c *Cache) acquire(key asset.Key) *Handle {
	c.mu.Lock()
	if h, ok := c.records[key]; ok {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordLookup(true)
		}
		return h
	}

	h := newHandle(key)
	c.records[key] = h
	ctx := c.ctx
	c.fetches.Add(1)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordLookup(false)
	}

	go c.fetch(ctx, h)
	return h
}

func (c *Cache) fetch(ctx context.Context, h *Handle) {
	defer c.fetches.Done()

	if c.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartFetchSpan(ctx, string(h.key))
	defer span.End()

	start := time.Now()
	surface, err := c.loader.Load(ctx, h.key)
	duration := time.Since(start)

	if err == nil && surface == nil {
		err = errNoSurface
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
	}

	if !h.resolve(surface, err) {
		// Dispose got there first; nobody can reach this surface any more.
		if surface != nil {
			surface.Release()
		}
		return
	}

	bytes := 0
	if surface != nil {
		bytes = surface.Bytes
	}
	if c.metrics != nil {
		c.metrics.ObserveFetch(duration, bytes, err)
	}

	if err != nil {
		logger.Warn("Asset fetch failed",
			logger.AssetKey(string(h.key)),
			logger.Err(err),
			logger.KeyDurationMs, float64(duration.Microseconds())/1000.0)
		return
	}

	logger.Debug("Asset ready",
		logger.AssetKey(string(h.key)),
		logger.KeyBytes, bytes,
		logger.KeyDurationMs, float64(duration.Microseconds())/1000.0)
}
