package prefetch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
	"github.com/worshipwaves/WDweb-sub002/pkg/cache"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle/idletest"
)

// testLoader resolves keys immediately in auto mode, otherwise only once
// release is called for them.
type testLoader struct {
	auto  bool
	calls atomic.Int32

	mu    sync.Mutex
	gates map[asset.Key]chan struct{}
	fails map[asset.Key]error
}

func newTestLoader(auto bool) *testLoader {
	return &testLoader{
		auto:  auto,
		gates: make(map[asset.Key]chan struct{}),
		fails: make(map[asset.Key]error),
	}
}

func (l *testLoader) gate(key asset.Key) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[key]
	if !ok {
		g = make(chan struct{})
		l.gates[key] = g
	}
	return g
}

func (l *testLoader) release(keys ...asset.Key) {
	for _, k := range keys {
		close(l.gate(k))
	}
}

func (l *testLoader) failWith(key asset.Key, err error) {
	l.mu.Lock()
	l.fails[key] = err
	l.mu.Unlock()
}

func (l *testLoader) Load(ctx context.Context, key asset.Key) (*asset.Surface, error) {
	l.calls.Add(1)
	if !l.auto {
		select {
		case <-l.gate(key):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	err := l.fails[key]
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &asset.Surface{Key: key, Format: "png", Width: 1, Height: 1, Bytes: 1}, nil
}

func testCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	items := make([]catalog.Item, n)
	for i := range items {
		items[i] = catalog.Item{ID: fmt.Sprintf("item%d", i), Tag: i}
	}
	c, err := catalog.New(items, catalog.Template{
		Primary:   "{id}/diffuse_{tag}",
		Secondary: "{id}/normal_{tag}",
		Tertiary:  "{id}/roughness_{tag}",
	})
	require.NoError(t, err)
	return c
}

func keysOf(t *testing.T, cat *catalog.Catalog, id string) []asset.Key {
	t.Helper()
	job, ok := cat.Job(id)
	require.True(t, ok)
	return job.Keys[:]
}

type fixture struct {
	cat    *catalog.Catalog
	loader *testLoader
	cache  *cache.Cache
	host   *idletest.Host
	clk    clockwork.FakeClock
	sched  *Scheduler

	progress chan Status
}

func newFixture(t *testing.T, items int, auto bool) *fixture {
	t.Helper()

	f := &fixture{
		cat:      testCatalog(t, items),
		loader:   newTestLoader(auto),
		host:     idletest.New(),
		clk:      clockwork.NewFakeClock(),
		progress: make(chan Status, 64),
	}
	f.cache = cache.New(f.loader, cache.DefaultConfig(), nil)
	f.sched = New(f.cat, f.cache, f.host, f.clk, DefaultConfig(), nil)

	t.Cleanup(func() {
		f.sched.Stop()
		f.cache.Dispose()
		f.cache.Wait()
	})
	return f
}

// subscribe registers a progress recorder and drains the immediate call.
func (f *fixture) subscribe(t *testing.T) {
	t.Helper()
	f.sched.OnProgress(func(s Status) { f.progress <- s })
	f.nextProgress(t)
}

func (f *fixture) nextProgress(t *testing.T) Status {
	t.Helper()
	select {
	case s := <-f.progress:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no progress update")
		return Status{}
	}
}

func (f *fixture) noProgress(t *testing.T) {
	t.Helper()
	select {
	case s := <-f.progress:
		t.Fatalf("unexpected progress update %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func (f *fixture) waitPending(t *testing.T, n int) {
	t.Helper()
	require.True(t, f.host.WaitPending(n, 5*time.Second), "want %d pending idle requests, have %d", n, f.host.Pending())
}

func (f *fixture) waitCalls(t *testing.T, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return f.loader.calls.Load() == n }, 5*time.Second, time.Millisecond)
}
