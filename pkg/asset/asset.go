// Package asset defines the types shared by the asset cache and its loaders:
// the opaque key of one loadable resource, the decoded surface it resolves
// to, and the fetch-and-decode primitive that produces surfaces.
package asset

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/internal/telemetry"
)

// Key identifies one loadable resource, for example one bitmap of one catalog
// item at one quality tier. Keys are opaque and stable.
type Key string

// String returns the key as a plain string.
func (k Key) String() string { return string(k) }

// Surface is a decoded surface map. A Surface is owned by the cache record
// that produced it; consumers reach it through views and never free it.
type Surface struct {
	Key    Key
	Format string // "png", "jpeg", "webp", ...
	Width  int
	Height int
	Bytes  int // encoded size as fetched
	Image  image.Image
}

// Pixels returns the pixel count of the surface.
func (s *Surface) Pixels() int {
	if s == nil {
		return 0
	}
	return s.Width * s.Height
}

// Release drops the decoded pixel data. The dimensions stay readable.
func (s *Surface) Release() {
	if s == nil {
		return
	}
	s.Image = nil
}

// Released reports whether Release has been called.
func (s *Surface) Released() bool {
	return s == nil || s.Image == nil
}

// Loader is the fetch-and-decode primitive the cache delegates misses to.
// Load must honour ctx cancellation when the underlying transport supports it.
type Loader interface {
	Load(ctx context.Context, key Key) (*Surface, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, key Key) (*Surface, error)

// Load calls f(ctx, key).
func (f LoaderFunc) Load(ctx context.Context, key Key) (*Surface, error) {
	return f(ctx, key)
}

// Fetcher reads the encoded bytes for a key. Every pkg/store backend satisfies it.
type Fetcher interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Decoder turns encoded bytes into a Surface.
type Decoder interface {
	Decode(key Key, data []byte) (*Surface, error)
}

// NewLoader composes a Fetcher and a Decoder into a Loader.
func NewLoader(fetcher Fetcher, decoder Decoder) Loader {
	return &pipeline{fetcher: fetcher, decoder: decoder}
}

type pipeline struct {
	fetcher Fetcher
	decoder Decoder
}

func (p *pipeline) Load(ctx context.Context, key Key) (*Surface, error) {
	start := time.Now()

	data, err := p.fetcher.Read(ctx, string(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	decodeCtx, span := telemetry.StartSpan(ctx, telemetry.SpanAssetDecode)
	defer span.End()

	surface, err := p.decoder.Decode(key, data)
	if err != nil {
		telemetry.RecordError(decodeCtx, err)
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	span.SetAttributes(telemetry.AssetFormat(surface.Format), telemetry.AssetBytes(surface.Bytes))

	logger.DebugCtx(ctx, "Asset decoded",
		logger.AssetKey(string(key)),
		logger.KeyFormat, surface.Format,
		logger.KeyWidth, surface.Width,
		logger.KeyHeight, surface.Height,
		logger.KeyBytes, surface.Bytes,
		logger.DurationMs(start))

	return surface, nil
}
