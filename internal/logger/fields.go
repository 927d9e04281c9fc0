package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use these consistently so the
// prefetcher's lines can be aggregated and queried by asset or item.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Runtime
	KeySession = "session"
	KeyOrigin  = "origin"

	// Catalog & assets
	KeyItemID   = "item_id"
	KeyAssetKey = "asset_key"
	KeyTier     = "tier"
	KeyState    = "state"
	KeyFormat   = "format"
	KeyWidth    = "width"
	KeyHeight   = "height"
	KeyBytes    = "bytes"

	// Scheduling
	KeyTotal     = "total"
	KeyLoaded    = "loaded"
	KeyRemaining = "remaining"
	KeyTimeout   = "timeout"
	KeyKind      = "kind"

	// Storage backends
	KeyStoreType = "store_type"
	KeyBucket    = "bucket"
	KeyRegion    = "region"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// ItemID returns a slog.Attr for a catalog item identifier
func ItemID(id string) slog.Attr {
	return slog.String(KeyItemID, id)
}

// AssetKey returns a slog.Attr for an asset key
func AssetKey(key string) slog.Attr {
	return slog.String(KeyAssetKey, key)
}

// State returns a slog.Attr for a record or scheduler state
func State(state string) slog.Attr {
	return slog.String(KeyState, state)
}

// StoreType returns a slog.Attr for the byte store backing the loader
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// DurationMs returns a slog.Attr with the elapsed time since start in milliseconds.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Err returns a slog.Attr for an error; nil errors produce an empty attr that
// handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
