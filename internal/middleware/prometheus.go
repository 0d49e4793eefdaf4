// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/metrics"
)

// Metrics records per-request Prometheus metrics: in-flight gauge,
// and a counter/histogram keyed by method, path and response status.
// The orchestrator's route set is small and fixed, so the raw URL
// path is a safe label value here.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(sw.status), time.Since(start))
	})
}

// statusWriter captures the response status for the metrics label; a
// handler that never calls WriteHeader implicitly returned 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
