package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
)

// Attribute keys for asset loading spans.
const (
	AttrAssetKey    = "asset.key"
	AttrAssetFormat = "asset.format"
	AttrAssetBytes  = "asset.bytes"
	AttrCacheHit    = "cache.hit"
	AttrCacheState  = "cache.state"
	AttrItemID      = "catalog.item_id"
	AttrJobOrigin   = "prefetch.origin"
	AttrJobOutcome  = "prefetch.outcome"
	AttrStoreType   = "store.type"
	AttrBucket      = "storage.bucket"
	AttrStorageKey  = "storage.key"
)

// Span names. Format: <component>.<operation>
const (
	SpanAssetFetch    = "asset.fetch"
	SpanAssetDecode   = "asset.decode"
	SpanStoreRead     = "store.read"
	SpanPrefetchJob   = "prefetch.job"
	SpanLoadImmediate = "prefetch.load_immediate"
)

// AssetKey returns an attribute for the asset key being loaded.
func AssetKey(key string) attribute.KeyValue {
	return attribute.String(AttrAssetKey, key)
}

// AssetFormat returns an attribute for the decoded image format.
func AssetFormat(format string) attribute.KeyValue {
	return attribute.String(AttrAssetFormat, format)
}

// AssetBytes returns an attribute for the encoded size of an asset.
func AssetBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrAssetBytes, n)
}

// ItemID returns an attribute for a catalog item.
func ItemID(id string) attribute.KeyValue {
	return attribute.String(AttrItemID, id)
}

// JobOrigin returns an attribute naming who started a job.
func JobOrigin(origin string) attribute.KeyValue {
	return attribute.String(AttrJobOrigin, origin)
}

// JobOutcome returns an attribute for the job result (completed, failed, abandoned).
func JobOutcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrJobOutcome, outcome)
}

// StoreType returns an attribute for the byte store backend.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket returns an attribute for the storage bucket.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for the backend object key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrStorageKey, key)
}

// StartFetchSpan starts a span for one fetch-and-decode of an asset.
func StartFetchSpan(ctx context.Context, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{AssetKey(key)}, attrs...)
	return StartSpan(ctx, SpanAssetFetch, trace.WithAttributes(attrs...))
}

// StartJobSpan starts a span covering one catalog item's key bundle. The
// returned context also carries the item and trace ids for log lines.
func StartJobSpan(ctx context.Context, name, itemID, origin string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(ItemID(itemID), JobOrigin(origin)))
	lc := logger.FromContext(ctx).WithItem(itemID, origin).WithTrace(TraceID(ctx), SpanID(ctx))
	return logger.WithContext(ctx, lc), span
}

// StartStoreSpan starts a span for a backend read.
func StartStoreSpan(ctx context.Context, storeType, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{StoreType(storeType), StorageKey(key)}, attrs...)
	return StartSpan(ctx, SpanStoreRead, trace.WithAttributes(attrs...))
}

// CacheHit returns an attribute recording whether the key was already cached.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheState returns an attribute for a cache record state.
func CacheState(state string) attribute.KeyValue {
	return attribute.String(AttrCacheState, state)
}
