package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worshipwaves/WDweb-sub002/pkg/config"
	"github.com/worshipwaves/WDweb-sub002/pkg/runtime"
)

// execute runs the root command. Flags persist between runs, so every
// call passes the ones it depends on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), err
}

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 4, "loaded": 1, "remaining": 3, "state": "scheduled"})
	})
	mux.HandleFunc("POST /api/v1/items/{id}/load", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "walnut" {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": 404, "title": "Not Found", "detail": "unknown item"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 4, "loaded": 2, "remaining": 2, "state": "scheduled"})
	})
	mux.HandleFunc("POST /api/v1/activity", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestStatusTable(t *testing.T) {
	srv := fakeAPI(t)

	out, err := execute(t, "status", "--server", srv.URL, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "STATE")
	assert.Contains(t, out, "scheduled")
}

func TestLoadJSON(t *testing.T) {
	srv := fakeAPI(t)

	out, err := execute(t, "load", "walnut", "--server", srv.URL, "-o", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.EqualValues(t, 2, got["loaded"])
}

func TestLoadUnknownItem(t *testing.T) {
	srv := fakeAPI(t)

	_, err := execute(t, "load", "oak", "--server", srv.URL, "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"oak" is not in the catalog`)
}

func TestActivity(t *testing.T) {
	srv := fakeAPI(t)

	out, err := execute(t, "activity", "scroll", "--server", srv.URL, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Reported scroll activity")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetd.yaml")

	_, err := execute(t, "config", "init", "--config", path, "--force=false", "--interactive=false")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fs", cfg.Store.Type)

	_, err = execute(t, "config", "init", "--config", path, "--force=false", "--interactive=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err := execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}

func TestPrefetchAllSkipped(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("items:\n  - id: walnut\n    tag: 1\n  - id: oak\n    tag: 2\n"), 0644))

	cfg := config.GetDefaultConfig()
	cfg.Logging.Output = "discard"
	cfg.Catalog.Path = catalogPath
	cfg.Store.Type = "memory"
	cfgPath := filepath.Join(dir, "assetd.yaml")
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	out, err := execute(t, "prefetch", "--config", cfgPath, "--skip", "2", "-o", "json")
	require.NoError(t, err)

	var got PrefetchResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 2, got.Loaded)
	assert.Equal(t, 0, got.Failed)
}

func TestRunUntilDrainedDrawsProgress(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("items:\n  - id: walnut\n    tag: 1\n  - id: oak\n    tag: 2\n"), 0644))

	cfg := config.GetDefaultConfig()
	cfg.Logging.Output = "discard"
	cfg.Catalog.Path = catalogPath
	cfg.Catalog.Skip = 2
	cfg.Store.Type = "memory"

	rt, err := runtime.New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	var bar bytes.Buffer
	status, err := runUntilDrained(context.Background(), rt, &bar, true)
	require.NoError(t, err)
	assert.True(t, status.Done())
	assert.Contains(t, bar.String(), "prefetch")
	assert.Contains(t, bar.String(), "2/2")
}
