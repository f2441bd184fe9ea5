// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/circle-app/circle/internal/logging"
	"github.com/circle-app/circle/internal/message"
	"github.com/circle-app/circle/internal/storage"
)

// errorResponse is the error body shape: {"error": "..."}.
type errorResponse struct {
	Error string `json:"error"`
}

// successResponse is the generic mutation acknowledgment.
type successResponse struct {
	Success bool `json:"success"`
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError writes {"error": message} with the given status.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondServiceError maps mutation-service and storage errors to HTTP
// statuses. Unexpected errors are logged and surfaced as a generic 500
// without leaking internals.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, message.ErrNotAuthorized):
		respondError(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, message.ErrEmptyContent):
		respondError(w, http.StatusBadRequest, "Message content cannot be empty")
	case errors.Is(err, message.ErrMissingEmoji):
		respondError(w, http.StatusBadRequest, "Emoji is required")
	case errors.Is(err, message.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	default:
		logging.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody decodes a JSON request body into dst, responding 400 on failure.
// Returns false if decoding failed and a response was already written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
