package apiclient

import (
	"fmt"
	"net/http"
)

// APIError is an RFC 7807 problem returned by the API.
type APIError struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	case e.Detail != "":
		return e.Detail
	case e.Title != "":
		return e.Title
	default:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
}

// IsNotFound returns true if this is a not found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsFetchFailure returns true if the server could not fetch or decode an asset.
func (e *APIError) IsFetchFailure() bool {
	return e.StatusCode == http.StatusBadGateway
}

// IsTimeout returns true if the server gave up waiting for a load.
func (e *APIError) IsTimeout() bool {
	return e.StatusCode == http.StatusGatewayTimeout
}
