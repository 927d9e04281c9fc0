package apiclient

import "context"

// Status is the scheduler progress snapshot.
type Status struct {
	Total     int    `json:"total"`
	Loaded    int    `json:"loaded"`
	Remaining int    `json:"remaining"`
	State     string `json:"state"`
}

// KeyStatus is the cache state of one asset key.
type KeyStatus struct {
	Key   string `json:"key"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Item describes one catalog item.
type Item struct {
	ID     string      `json:"id"`
	Tag    int         `json:"tag"`
	Loaded bool        `json:"loaded"`
	Keys   []KeyStatus `json:"keys"`
}

// Health is the wrapper returned by the health endpoints.
type Health struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Status returns the prefetch progress.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	return getResource[Status](ctx, c, "/api/v1/status")
}

// Item returns the cache state of a catalog item.
func (c *Client) Item(ctx context.Context, id string) (*Item, error) {
	return getResource[Item](ctx, c, resourcePath("/api/v1/items/%s", id))
}

// Load loads an item ahead of the scheduler and returns the progress after it.
func (c *Client) Load(ctx context.Context, id string) (*Status, error) {
	return postResource[Status](ctx, c, resourcePath("/api/v1/items/%s/load", id), nil)
}

// Pause suspends prefetch scheduling.
func (c *Client) Pause(ctx context.Context) (*Status, error) {
	return postResource[Status](ctx, c, "/api/v1/scheduler/pause", nil)
}

// Resume re-enables prefetch scheduling.
func (c *Client) Resume(ctx context.Context) (*Status, error) {
	return postResource[Status](ctx, c, "/api/v1/scheduler/resume", nil)
}

// Activity reports a user interaction of the given kind.
func (c *Client) Activity(ctx context.Context, kind string) error {
	return c.post(ctx, "/api/v1/activity", map[string]string{"kind": kind}, nil)
}

// Ready returns the readiness probe result.
func (c *Client) Ready(ctx context.Context) (*Health, error) {
	return getResource[Health](ctx, c, "/health/ready")
}
