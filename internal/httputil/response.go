// Package httputil holds the JSON response helpers shared by every API
// handler. Errors travel as {"error": msg} bodies with the appropriate
// status; encode failures are diagnostics, not client errors, and go
// through the monitoring logger.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/bemo-play/tangram-engine/internal/monitoring"
)

// WriteJSON writes data as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("[httputil] encoding response: %v", err)
	}
}

// WriteJSONOK writes data as a 200 JSON body.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes an {"error": msg} body with the given status.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		monitoring.Logf("[httputil] encoding error response: %v", err)
	}
}

// BadRequest rejects a malformed request with 400.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound reports a missing resource with 404.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// MethodNotAllowed rejects an unsupported verb with 405.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// InternalServerError reports a server-side failure with 500.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}
