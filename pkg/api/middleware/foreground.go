// Package middleware provides HTTP middleware for the assetd API.
package middleware

import (
	"net/http"
	"strings"
)

// Tracker counts foreground requests. The idle host treats the process as
// busy while any are in flight.
type Tracker interface {
	BeginRequest() (done func())
}

// Foreground marks each request as foreground work for its duration.
// Paths under any of the exempt prefixes (probes, scrapes) are not counted.
func Foreground(t Tracker, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range exempt {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			done := t.BeginRequest()
			defer done()
			next.ServeHTTP(w, r)
		})
	}
}
