// Package handlers provides HTTP handlers for the assetd API.
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
)

// ContentTypeProblemJSON is the media type of error bodies (RFC 7807).
const ContentTypeProblemJSON = "application/problem+json"

const maxRequestBody = 1 << 16

// Problem is an RFC 7807 error body. Title is the status text.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Health is the body of the health endpoints. Status is "healthy" or
// "unhealthy"; Error explains an unhealthy status.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthy(data any) Health {
	return Health{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthy(reason string) Health {
	return Health{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: reason}
}

// writeProblem writes a problem body for status.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	writeBody(w, status, ContentTypeProblemJSON, Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// writeJSON encodes data into a buffer first so an encoding failure still
// yields a well-formed 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	writeBody(w, status, "application/json", data)
}

func writeBody(w http.ResponseWriter, status int, contentType string, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", logger.Err(err))
		http.Error(w, `{"title":"Internal Server Error","status":500}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// decodeJSON reads a bounded JSON body into v. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
