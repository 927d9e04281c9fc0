package httpstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cdn/textures/oak/diffuse.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("oak pixels"))
	})
	mux.HandleFunc("/cdn/broken.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/cdn/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStoreRead(t *testing.T) {
	srv := newServer(t)
	s, err := New(Config{BaseURL: srv.URL + "/cdn"})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	data, err := s.Read(ctx, "textures/oak/diffuse.png")
	require.NoError(t, err)
	assert.Equal(t, "oak pixels", string(data))

	_, err = s.Read(ctx, "textures/pine/diffuse.png")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Read(ctx, "broken.png")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)

	_, err = s.Read(ctx, "../secret")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
}

func TestStoreMaxObjectSize(t *testing.T) {
	srv := newServer(t)
	s, err := New(Config{BaseURL: srv.URL + "/cdn/", MaxObjectSize: 4})
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "textures/oak/diffuse.png")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestStoreHealthCheck(t *testing.T) {
	srv := newServer(t)
	s, err := New(Config{BaseURL: srv.URL + "/cdn", HealthPath: "/healthz"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.HealthCheck(ctx))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.HealthCheck(ctx), store.ErrClosed)
	_, err = s.Read(ctx, "textures/oak/diffuse.png")
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}
