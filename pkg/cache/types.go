package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
)

// State is the lifecycle state of a cache record.
type State int

const (
	// StateLoading means the fetch-and-decode for the key is still running.
	StateLoading State = iota
	// StateReady means the record holds a decoded surface.
	StateReady
	// StateFailed is terminal: the fetch or decode failed and is not retried.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotCached is returned by WaitUntilReady when no record exists for the key.
	ErrNotCached = errors.New("asset not cached")

	// ErrFetchFailed is wrapped by every FetchError.
	ErrFetchFailed = errors.New("asset fetch failed")

	// ErrDisposed is recorded on loading handles dropped by Dispose.
	ErrDisposed = errors.New("cache disposed")
)

// FetchError records why a key ended up Failed. It matches both
// ErrFetchFailed and the underlying cause under errors.Is.
type FetchError struct {
	Key asset.Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch asset %q: %v", string(e.Key), e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// Config tunes a Cache.
type Config struct {
	// FetchTimeout aborts a single fetch-and-decode that runs longer than
	// this. Zero disables the limit.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"gte=0" yaml:"fetch_timeout"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{}
}

// Stats is a snapshot of record counts by state.
type Stats struct {
	Loading int `json:"loading"`
	Ready   int `json:"ready"`
	Failed  int `json:"failed"`
}

// Total returns the number of records.
func (s Stats) Total() int {
	return s.Loading + s.Ready + s.Failed
}

// Metrics receives cache instrumentation. A nil Metrics is valid and costs nothing.
type Metrics interface {
	// RecordLookup records a Get or EnsureCached call; hit is false on a miss.
	RecordLookup(hit bool)

	// ObserveFetch records one completed fetch-and-decode.
	ObserveFetch(duration time.Duration, bytes int, err error)

	// RecordDispose records a Dispose call and the number of records dropped.
	RecordDispose(records int)
}
