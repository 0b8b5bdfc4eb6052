// Package api provides the HTTP handlers of the VoiceHeard service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/voiceheard/internal/frame"
	"github.com/ayusman/voiceheard/internal/gloss"
	"github.com/ayusman/voiceheard/internal/session"
	"github.com/ayusman/voiceheard/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionBusy), errors.Is(err, session.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, gloss.ErrEmptyInput), errors.Is(err, frame.ErrMalformedFrame):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with its mapped status. Internal errors are not
// echoed to the client.
func writeErr(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}
