// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package middleware holds the HTTP middleware the orchestrator's API
// router composes around every endpoint: request identity for log
// correlation, Prometheus instrumentation, and response compression.
// All middleware follows the standard func(http.Handler) http.Handler
// shape so it slots directly into chi's Use chain.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/logging"
)

// requestIDHeader is both read (a proxy or scanner may supply its own
// ID for end-to-end tracing) and written back on the response.
const requestIDHeader = "X-Request-ID"

type contextKey int

const requestIDKey contextKey = iota

// RequestID assigns each request an ID and a short correlation ID,
// placing both in the request context so every log line emitted while
// handling one scan can be tied back to it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = logging.ContextWithRequestID(ctx, id)
		ctx = logging.ContextWithNewCorrelationID(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
