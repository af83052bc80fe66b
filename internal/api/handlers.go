// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/scheduler"
	"github.com/tomtom215/nuntius/internal/validation"
)

// maxRunBodyBytes caps the POST /api/v1/run request body. The only
// accepted field is a small integer.
const maxRunBodyBytes = 1 << 10

// healthResponse is the GET /healthz body.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// runRequest is the optional POST /api/v1/run body. Days overrides the
// configured lookback window for this run only.
type runRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=3650"`
}

// runResponse acknowledges an accepted manual run.
type runResponse struct {
	RunID string `json:"run_id"`
}

// apiError is the error payload for non-2xx responses.
type apiError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// errorBody wraps apiError in the response envelope.
type errorBody struct {
	Error apiError `json:"error"`
}

// handleHealthz reports liveness with version and uptime.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleStatus returns the scheduler snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleRunNow triggers a digest run outside the schedule. An empty
// body keeps the configured lookback window. Responds 202 with the run
// ID, or 409 while a run is active.
func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	var req runRequest

	// An absent body decodes as io.EOF and keeps the zero value.
	err := json.NewDecoder(io.LimitReader(r.Body, maxRunBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: *apiErr})
		return
	}

	runID, err := s.scheduler.TriggerNow(req.Days)
	if err != nil {
		if errors.Is(err, scheduler.ErrRunActive) {
			respondError(w, http.StatusConflict, "RUN_ACTIVE", "A digest run is already active", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "TRIGGER_FAILED", "Could not start the run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, runResponse{RunID: runID})
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error response, logging err when present.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("Ops API error")
	}

	respondJSON(w, status, errorBody{Error: apiError{Code: code, Message: message}})
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or an apiError using the
// VALIDATION_ERROR code.
func validateRequest(v interface{}) *apiError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	converted := validationErr.ToAPIError()
	return &apiError{
		Code:    converted.Code,
		Message: converted.Message,
		Details: converted.Details,
	}
}
