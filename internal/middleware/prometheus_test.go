// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetrics_PassesThroughResponse(t *testing.T) {
	h := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":"error"}`))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scan", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 passed through", w.Code)
	}
	if w.Body.String() != `{"status":"error"}` {
		t.Fatalf("body altered: %s", w.Body.String())
	}
}

func TestMetrics_DefaultStatusIs200(t *testing.T) {
	// A handler that writes the body without calling WriteHeader must
	// still be recorded as 200, not 0.
	h := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestStatusWriter_CapturesExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.WriteHeader(http.StatusServiceUnavailable)

	if sw.status != http.StatusServiceUnavailable {
		t.Fatalf("captured status = %d, want 503", sw.status)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("underlying status = %d, want 503", rec.Code)
	}
}
