package runtime

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worshipwaves/WDweb-sub002/pkg/activity"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/config"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle/idletest"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/memory"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type harness struct {
	rt    *Runtime
	host  *idletest.Host
	clock clockwork.FakeClock
	store *memory.Store
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()

	items := make([]catalog.Item, len(ids))
	for i, id := range ids {
		items[i] = catalog.Item{ID: id, Tag: 1}
	}
	cat, err := catalog.New(items, catalog.DefaultTemplate())
	require.NoError(t, err)

	st := memory.New()
	data := encodePNG(t)
	for _, job := range cat.Jobs() {
		for _, k := range job.Keys {
			require.NoError(t, st.Write(context.Background(), string(k), data))
		}
	}

	h := &harness{
		host:  idletest.New(),
		clock: clockwork.NewFakeClock(),
		store: st,
	}

	cfg := config.GetDefaultConfig()
	cfg.Store.Type = "memory"
	rt, err := New(context.Background(), cfg,
		WithCatalog(cat),
		WithStore(st),
		WithIdleHost(h.host),
		WithClock(h.clock),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	h.rt = rt
	return h
}

func TestRuntimePrefetchesCatalog(t *testing.T) {
	h := newHarness(t, "walnut", "cherry", "maple")

	progress := make(chan prefetch.Status, 8)
	unsubscribe := h.rt.Scheduler().OnProgress(func(s prefetch.Status) { progress <- s })
	defer unsubscribe()

	h.rt.Start()
	require.Equal(t, prefetch.Status{Total: 3, Loaded: 0, Remaining: 3}, h.rt.Scheduler().Status())

	for want := 1; want <= 3; want++ {
		require.True(t, h.host.WaitPending(1, time.Second))
		require.True(t, h.host.FireIdle())

		select {
		case s := <-progress:
			assert.Equal(t, want, s.Loaded)
		case <-time.After(2 * time.Second):
			t.Fatalf("no progress after job %d", want)
		}
	}

	assert.True(t, h.rt.Scheduler().Status().Done())
	assert.Equal(t, 9, h.rt.Cache().Stats().Ready)
	for _, id := range []string{"walnut", "cherry", "maple"} {
		assert.True(t, h.rt.Scheduler().IsLoaded(id), id)
	}
}

func TestRuntimeSkipCount(t *testing.T) {
	h := newHarness(t, "a", "b", "c", "d")
	h.rt.Config().Catalog.Skip = 2

	h.rt.Start()

	assert.Equal(t, []string{"c", "d"}, h.rt.Scheduler().Backlog())
}

func TestRuntimeActivityPausesScheduler(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.rt.Start()
	require.True(t, h.host.WaitPending(1, time.Second))

	h.rt.Events().Publish(activity.Event{Kind: activity.KindPress, At: h.clock.Now()})

	assert.Equal(t, prefetch.StatePaused, h.rt.Scheduler().State())
	assert.Equal(t, 0, h.host.Pending())

	h.clock.BlockUntil(1)
	h.clock.Advance(h.rt.Config().Activity.QuietWindow)

	require.Eventually(t, func() bool {
		return h.rt.Scheduler().State() == prefetch.StateScheduled
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.host.Pending())
}

func TestRuntimeBusyTracksRequests(t *testing.T) {
	h := newHarness(t, "a")

	assert.False(t, h.rt.Busy())
	done1 := h.rt.BeginRequest()
	done2 := h.rt.BeginRequest()
	assert.True(t, h.rt.Busy())

	done1()
	done1()
	assert.True(t, h.rt.Busy())

	done2()
	assert.False(t, h.rt.Busy())
}

func TestRuntimeCloseDisposesCache(t *testing.T) {
	h := newHarness(t, "a")
	h.rt.Start()

	require.NoError(t, h.rt.Scheduler().LoadImmediate(context.Background(), "a"))
	require.Equal(t, 3, h.rt.Cache().Len())

	require.NoError(t, h.rt.Close())
	require.NoError(t, h.rt.Close())

	assert.Equal(t, 0, h.rt.Cache().Len())
	_, err := h.store.Read(context.Background(), "anything")
	assert.Error(t, err)
}

type fakeServer struct {
	started atomic.Bool
	stopped atomic.Bool
	fail    error
}

func (s *fakeServer) Start(ctx context.Context) error {
	s.started.Store(true)
	if s.fail != nil {
		return s.fail
	}
	<-ctx.Done()
	return nil
}

func (s *fakeServer) Stop(ctx context.Context) error {
	s.stopped.Store(true)
	return nil
}

func (s *fakeServer) Port() int { return 0 }

func TestRuntimeServeStopsOnCancel(t *testing.T) {
	h := newHarness(t, "a")
	srv := &fakeServer{}
	h.rt.SetAPIServer(srv)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.rt.Serve(ctx) }()

	require.Eventually(t, srv.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.True(t, srv.stopped.Load())

	assert.Error(t, h.rt.Serve(context.Background()), "second Serve must be rejected")
}

func TestRuntimeServeStopsOnServerError(t *testing.T) {
	h := newHarness(t, "a")
	h.rt.SetAPIServer(&fakeServer{fail: assert.AnError})

	err := h.rt.Serve(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewLoadsCatalogFromConfig(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("items:\n  - id: oak\n    tag: \"2\"\n"), 0644))

	cfg := config.GetDefaultConfig()
	cfg.Catalog.Path = catalogPath
	cfg.Store.Type = "fs"
	cfg.Store.FS.BasePath = filepath.Join(dir, "assets")

	rt, err := New(context.Background(), cfg, WithIdleHost(idletest.New()))
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, 1, rt.Catalog().Len())
	assert.NotEmpty(t, rt.Session())
}

func TestNewMissingCatalog(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
