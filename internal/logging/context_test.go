// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "scan1234")
	if got := CorrelationIDFromContext(ctx); got != "scan1234" {
		t.Fatalf("CorrelationIDFromContext() = %q, want scan1234", got)
	}
}

func TestCorrelationID_MissingIsEmpty(t *testing.T) {
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Fatalf("CorrelationIDFromContext(empty) = %q, want \"\"", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("RequestIDFromContext(empty) = %q, want \"\"", got)
	}
}

func TestNewCorrelationID_ShortAndUnique(t *testing.T) {
	a, b := NewCorrelationID(), NewCorrelationID()
	if len(a) != 8 {
		t.Fatalf("len(NewCorrelationID()) = %d, want 8", len(a))
	}
	if a == b {
		t.Fatalf("two correlation IDs collided: %q", a)
	}
}

func TestContextWithNewCorrelationID_Populates(t *testing.T) {
	ctx := ContextWithNewCorrelationID(context.Background())
	if CorrelationIDFromContext(ctx) == "" {
		t.Fatal("expected a generated correlation ID")
	}
}

func TestCtx_AttachesBothIDs(t *testing.T) {
	resetGlobal(t)
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})

	ctx := ContextWithCorrelationID(context.Background(), "corr0001")
	ctx = ContextWithRequestID(ctx, "req-42")

	Ctx(ctx).Info().Msg("traced")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"corr0001"`) {
		t.Fatalf("correlation_id missing: %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Fatalf("request_id missing: %s", out)
	}
}

func TestCtx_EmptyContextAddsNothing(t *testing.T) {
	resetGlobal(t)
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})

	Ctx(context.Background()).Info().Msg("plain")

	out := buf.String()
	if strings.Contains(out, "correlation_id") || strings.Contains(out, "request_id") {
		t.Fatalf("unexpected tracing fields on empty context: %s", out)
	}
}
