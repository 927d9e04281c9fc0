// Package httpstore reads objects over HTTP from a static asset server or CDN:
// GET {BaseURL}/{key}.
package httpstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/worshipwaves/WDweb-sub002/internal/bytesize"
	"github.com/worshipwaves/WDweb-sub002/internal/telemetry"
	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

// Config holds configuration for the HTTP store.
type Config struct {
	// BaseURL is the URL objects are resolved against.
	BaseURL string `mapstructure:"base_url" validate:"required,url" yaml:"base_url"`

	// Timeout bounds a single request. Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// HealthPath is requested by HealthCheck. Default: the base URL itself.
	HealthPath string `mapstructure:"health_path" yaml:"health_path"`

	// MaxObjectSize rejects larger bodies. Accepts "64Mi", "10MB" or plain
	// byte counts. 0 means no limit.
	MaxObjectSize bytesize.ByteSize `mapstructure:"max_object_size" yaml:"max_object_size"`
}

// ErrTooLarge is returned for objects over MaxObjectSize.
var ErrTooLarge = errors.New("object exceeds size limit")

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Store is a read-only HTTP implementation of store.Store.
type Store struct {
	base   *url.URL
	client *http.Client
	config Config
	closed bool
	mu     sync.RWMutex
}

// New creates an HTTP store.
func New(config Config) (*Store, error) {
	base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", config.BaseURL)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Store{
		base:   base,
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}, nil
}

func (s *Store) resolve(key string) (string, error) {
	if err := store.ValidateKey(key); err != nil {
		return "", err
	}
	ref, err := url.Parse(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrInvalidKey, err)
	}
	return s.base.ResolveReference(ref).String(), nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Read fetches the object for key. 404 maps to store.ErrNotFound.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartStoreSpan(ctx, store.TypeHTTP, key)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, store.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	limit := s.config.MaxObjectSize.Int64()
	body := io.Reader(resp.Body)
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", target, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w", key, ErrTooLarge)
	}

	span.SetAttributes(telemetry.AssetBytes(len(data)))
	return data, nil
}

// HealthCheck issues a HEAD request against HealthPath (or the base URL).
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	target := s.base.String()
	if s.config.HealthPath != "" {
		var err error
		if target, err = s.resolve(strings.TrimPrefix(s.config.HealthPath, "/")); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http health check: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &StatusError{StatusCode: resp.StatusCode, URL: target}
	}
	return nil
}

// Close marks the store as closed and drops idle connections.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

var _ store.Store = (*Store)(nil)
