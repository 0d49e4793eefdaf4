// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package httpapi

import (
	"hash/fnv"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/maxepunk/aln-orchestrator/internal/logging"
	"github.com/maxepunk/aln-orchestrator/internal/validation"
)

// Response is the envelope every endpoint in this package replies
// with: a status discriminator plus either a data or an error half.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *APIError   `json:"error,omitempty"`
}

// APIError is the error half of Response.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, resp Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("httpapi: failed to marshal response")
		http.Error(w, `{"status":"error","error":{"code":"INTERNAL_ERROR","message":"failed to encode response"}}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", generateETag(body))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("httpapi: failed to write response body")
	}
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, Response{Status: "ok", Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Err(err).Str("code", code).Msg(message)
	}
	respondJSON(w, status, Response{Status: "error", Error: &APIError{Code: code, Message: message}})
}

func respondValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, Response{
		Status: "error",
		Error:  &APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details},
	})
}

// generateETag hashes body with FNV-1a; the ETag only needs to be
// cheap and stable, not cryptographic.
func generateETag(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)
	return `"` + strconv.FormatUint(h.Sum64(), 16) + `"`
}
