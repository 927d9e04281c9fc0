// Package store defines the byte sources the asset loader fetches encoded
// surface maps from.
//
// Implementations live in subpackages: memory, fs, s3, httpstore, badger and
// tiered. Keys are slash-separated relative paths such as
// "textures/walnut/2k/diffuse_3.png".
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no object exists for a key.
	ErrNotFound = errors.New("object not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")

	// ErrInvalidKey is returned for keys that are empty or escape the store root.
	ErrInvalidKey = errors.New("invalid object key")
)

// Store is a read-only byte source.
type Store interface {
	// Read returns the full object for key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources. Further calls return ErrClosed.
	Close() error
}

// Writer is implemented by stores that can be written to, used to seed
// stores and as the write-back side of a tiered store.
type Writer interface {
	Write(ctx context.Context, key string, data []byte) error
}

// ReadWriter is a Store that can also be written.
type ReadWriter interface {
	Store
	Writer
}

// Backend type names, as used in configuration.
const (
	TypeMemory = "memory"
	TypeFS     = "fs"
	TypeS3     = "s3"
	TypeHTTP   = "http"
	TypeBadger = "badger"
)

// ValidateKey rejects empty keys, absolute keys and keys containing "..".
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
