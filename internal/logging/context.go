// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	requestIDKey
)

// NewCorrelationID returns a short random ID used to tie together the
// log lines of one scan or command as it moves through the transaction
// engine, session manager and broadcast path. Eight hex characters is
// plenty for a single evening's traffic and keeps log lines readable.
func NewCorrelationID() string {
	return uuid.NewString()[:8]
}

// ContextWithCorrelationID stamps ctx with the given correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID stamps ctx with a fresh correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, NewCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// ContextWithRequestID stamps ctx with an HTTP request ID (the
// X-Request-ID value chosen by the request-id middleware).
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Ctx returns the global logger with any correlation and request IDs
// present in ctx already attached as fields.
//
//	logging.Ctx(r.Context()).Info().Msg("scan accepted")
func Ctx(ctx context.Context) *zerolog.Logger {
	builder := Logger().With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		builder = builder.Str("correlation_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		builder = builder.Str("request_id", id)
	}
	l := builder.Logger()
	return &l
}
