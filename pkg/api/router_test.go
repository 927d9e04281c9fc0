package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worshipwaves/WDweb-sub002/pkg/api/handlers"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/config"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle/idletest"
	"github.com/worshipwaves/WDweb-sub002/pkg/metrics"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
	"github.com/worshipwaves/WDweb-sub002/pkg/runtime"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/memory"
)

type testEnv struct {
	rt      *runtime.Runtime
	host    *idletest.Host
	handler http.Handler
}

// newTestEnv builds a runtime over a memory store holding every key of the
// given items, except keys listed in missing.
func newTestEnv(t *testing.T, ids []string, missing ...string) *testEnv {
	t.Helper()

	items := make([]catalog.Item, len(ids))
	for i, id := range ids {
		items[i] = catalog.Item{ID: id, Tag: 1}
	}
	cat, err := catalog.New(items, catalog.DefaultTemplate())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))

	skip := make(map[string]bool)
	for _, k := range missing {
		skip[k] = true
	}
	st := memory.New()
	for _, job := range cat.Jobs() {
		for _, k := range job.Keys {
			if !skip[string(k)] {
				require.NoError(t, st.Write(context.Background(), string(k), buf.Bytes()))
			}
		}
	}

	host := idletest.New()
	cfg := config.GetDefaultConfig()
	cfg.Store.Type = "memory"
	rt, err := runtime.New(context.Background(), cfg,
		runtime.WithCatalog(cat),
		runtime.WithStore(st),
		runtime.WithIdleHost(host),
		runtime.WithClock(clockwork.NewFakeClock()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	return &testEnv{rt: rt, host: host, handler: NewRouter(rt, 5*time.Second)}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, []string{"walnut"})

	w := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[handlers.Health](t, w)
	assert.Equal(t, "healthy", resp.Status)

	w = env.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessFailsAfterStoreClosed(t *testing.T) {
	env := newTestEnv(t, []string{"walnut"})
	require.NoError(t, env.rt.Store().Close())

	w := env.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode[handlers.Health](t, w)
	assert.Equal(t, "unhealthy", resp.Status)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, []string{"a", "b", "c"})
	env.rt.Start()

	w := env.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	status := decode[handlers.StatusResponse](t, w)
	assert.Equal(t, handlers.StatusResponse{Total: 3, Loaded: 0, Remaining: 3, State: "scheduled"}, status)
}

func TestItemAndLoad(t *testing.T) {
	env := newTestEnv(t, []string{"a", "b"})
	env.rt.Start()

	w := env.do(t, http.MethodGet, "/api/v1/items/b", "")
	require.Equal(t, http.StatusOK, w.Code)
	item := decode[handlers.ItemResponse](t, w)
	assert.False(t, item.Loaded)
	require.Len(t, item.Keys, 3)
	assert.Equal(t, "absent", item.Keys[0].State)

	w = env.do(t, http.MethodPost, "/api/v1/items/b/load", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[handlers.StatusResponse](t, w)
	assert.Equal(t, 1, status.Loaded)
	assert.Equal(t, 1, status.Remaining)

	w = env.do(t, http.MethodGet, "/api/v1/items/b", "")
	item = decode[handlers.ItemResponse](t, w)
	assert.True(t, item.Loaded)
	for _, k := range item.Keys {
		assert.Equal(t, "ready", k.State, k.Key)
	}
}

func TestLoadUnknownItem(t *testing.T) {
	env := newTestEnv(t, []string{"a"})

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/items/zzz/load", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/items/zzz", "").Code)
}

func TestLoadFetchFailure(t *testing.T) {
	keys := catalog.DefaultTemplate().Expand(catalog.Item{ID: "a", Tag: 1})
	env := newTestEnv(t, []string{"a"}, string(keys[1]))

	w := env.do(t, http.MethodPost, "/api/v1/items/a/load", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, handlers.ContentTypeProblemJSON, w.Header().Get("Content-Type"))

	w = env.do(t, http.MethodGet, "/api/v1/items/a", "")
	item := decode[handlers.ItemResponse](t, w)
	assert.Equal(t, "failed", item.Keys[1].State)
	assert.NotEmpty(t, item.Keys[1].Error)
}

func TestPauseResume(t *testing.T) {
	env := newTestEnv(t, []string{"a", "b"})
	env.rt.Start()
	require.True(t, env.host.WaitPending(1, time.Second))

	w := env.do(t, http.MethodPost, "/api/v1/scheduler/pause", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", decode[handlers.StatusResponse](t, w).State)
	assert.Equal(t, 0, env.host.Pending())

	w = env.do(t, http.MethodPost, "/api/v1/scheduler/resume", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scheduled", decode[handlers.StatusResponse](t, w).State)
	assert.Equal(t, 1, env.host.Pending())
}

func TestActivityPausesScheduler(t *testing.T) {
	env := newTestEnv(t, []string{"a", "b"})
	env.rt.Start()

	w := env.do(t, http.MethodPost, "/api/v1/activity", `{"kind":"press"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, prefetch.StatePaused, env.rt.Scheduler().State())

	w = env.do(t, http.MethodPost, "/api/v1/activity", `{"kind":"hover"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/activity", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Reset()
	t.Cleanup(metrics.Reset)

	env := newTestEnv(t, []string{"a"})
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/metrics", "").Code)

	metrics.InitRegistry()
	env = newTestEnv(t, []string{"a"})
	require.NoError(t, env.rt.Scheduler().LoadImmediate(context.Background(), "a"))

	w := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "assetd_cache_lookups_total")
	assert.Contains(t, w.Body.String(), "assetd_prefetch_jobs_total")
}
