package cache

import (
	"context"
	"sync"

	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
)

// Handle is the single shared record for one key. It owns the decoded
// surface; views reference it but never free it. Only the cache releases a
// handle, on Dispose.
type Handle struct {
	key  asset.Key
	done chan struct{} // closed when the handle leaves StateLoading

	mu      sync.RWMutex
	state   State
	surface *asset.Surface
	err     error
}

func newHandle(key asset.Key) *Handle {
	return &Handle{
		key:   key,
		done:  make(chan struct{}),
		state: StateLoading,
	}
}

// Key returns the asset key the handle was created for.
func (h *Handle) Key() asset.Key { return h.key }

// State returns the current record state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Surface returns the decoded surface, or nil while loading, after a
// failure or after the cache was disposed.
func (h *Handle) Surface() *asset.Surface {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.surface
}

// Err returns the recorded failure, or nil.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Done returns a channel closed once the handle is Ready or Failed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the handle leaves StateLoading or ctx is done. It
// returns the recorded failure for a Failed handle.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	default:
	}

	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve moves a loading handle to Ready or Failed and wakes every waiter.
// It returns false if the handle had already been resolved.
func (h *Handle) resolve(surface *asset.Surface, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateLoading {
		return false
	}

	if err != nil {
		h.state = StateFailed
		h.err = &FetchError{Key: h.key, Err: err}
	} else {
		h.state = StateReady
		h.surface = surface
	}
	close(h.done)
	return true
}

// release frees the surface. A handle still loading is failed with ErrDisposed.
func (h *Handle) release() {
	h.resolve(nil, ErrDisposed)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.surface != nil {
		h.surface.Release()
		h.surface = nil
	}
}

// View is one consumer's window onto a shared Handle. Its presentation
// fields are local to the consumer and may be changed freely; the surface
// itself is shared.
type View struct {
	handle *Handle

	Rotation float64
	OffsetX  float64
	OffsetY  float64
	RepeatX  float64
	RepeatY  float64
	FlipY    bool
}

func newView(h *Handle) *View {
	return &View{handle: h, RepeatX: 1, RepeatY: 1}
}

// Handle returns the shared record behind the view.
func (v *View) Handle() *Handle { return v.handle }

// Key returns the asset key.
func (v *View) Key() asset.Key { return v.handle.Key() }

// State returns the shared record state.
func (v *View) State() State { return v.handle.State() }

// Surface returns the shared surface, or nil if it is not Ready.
func (v *View) Surface() *asset.Surface { return v.handle.Surface() }

// Err returns the shared record failure, or nil.
func (v *View) Err() error { return v.handle.Err() }

// Ready returns a channel closed once the shared record is resolved.
func (v *View) Ready() <-chan struct{} { return v.handle.Done() }
