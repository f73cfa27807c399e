// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vpnshield/internal/logging"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeRateLimited   = "RATE_LIMITED"
	CodeCheckTimeout  = "CHECK_TIMEOUT"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
	CodeReloadFailed  = "RELOAD_FAILED"
	CodeInternalError = "INTERNAL_ERROR"
)

// Response is the envelope of every JSON body.
type Response struct {
	Status   string    `json:"status"`
	Data     any       `json:"data,omitempty"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *Response) {
	resp.Metadata.Timestamp = time.Now().UTC()
	resp.Metadata.RequestID = logging.RequestIDFromContext(r.Context())

	data, err := json.Marshal(resp)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, r *http.Request, status int, data any) {
	respondJSON(w, r, status, &Response{Status: "success", Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", code).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	respondJSON(w, r, status, &Response{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
}

func respondValidation(w http.ResponseWriter, r *http.Request, message string, details any) {
	respondJSON(w, r, http.StatusBadRequest, &Response{
		Status: "error",
		Error:  &APIError{Code: CodeValidation, Message: message, Details: details},
	})
}

// sanitizeLogValue strips line breaks so user input cannot forge log lines.
func sanitizeLogValue(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
