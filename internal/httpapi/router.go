// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/maxepunk/aln-orchestrator/internal/admin"
	"github.com/maxepunk/aln-orchestrator/internal/auth"
	"github.com/maxepunk/aln-orchestrator/internal/catalog"
	"github.com/maxepunk/aln-orchestrator/internal/logging"
	mw "github.com/maxepunk/aln-orchestrator/internal/middleware"
	"github.com/maxepunk/aln-orchestrator/internal/offline"
	"github.com/maxepunk/aln-orchestrator/internal/projector"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/txn"
)

// scanRateLimit and adminAuthRateLimit bound the two endpoints most
// exposed to a misbehaving scanner (a device retrying in a hot loop)
// or a brute-force admin login attempt. Limits are per route rather
// than one blanket limit.
const (
	scanRateLimit            = 120
	scanRateLimitWindow      = time.Minute
	adminAuthRateLimit       = 10
	adminAuthRateLimitWindow = time.Minute
)

// Router builds the chi mux serving the orchestrator's HTTP API.
type Router struct {
	catalog     *catalog.Catalog
	sessions    *session.Manager
	engine      *txn.Engine
	offline     *offline.Handler
	adminCmd    *admin.Handler
	jwt         *auth.JWTManager
	passwords   *auth.PasswordManager
	video       projector.VideoQueue
	corsOrigins []string
}

// New constructs the HTTP API Router. video may be nil before the
// Video Queue is wired in, in which case GET /api/state reports
// videoStatus as its zero value.
func New(
	cat *catalog.Catalog,
	sessions *session.Manager,
	engine *txn.Engine,
	offlineHandler *offline.Handler,
	adminCmd *admin.Handler,
	jwtManager *auth.JWTManager,
	passwords *auth.PasswordManager,
	video projector.VideoQueue,
	corsOrigins []string,
) *Router {
	return &Router{
		catalog:     cat,
		sessions:    sessions,
		engine:      engine,
		offline:     offlineHandler,
		adminCmd:    adminCmd,
		jwt:         jwtManager,
		passwords:   passwords,
		video:       video,
		corsOrigins: corsOrigins,
	}
}

// Handler builds and returns the complete chi mux, ready to be
// wrapped by http.Server.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.cors())
	r.Use(mw.Metrics)
	r.Use(mw.Compression)

	r.Get("/health", rt.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.With(httprate.LimitByIP(scanRateLimit, scanRateLimitWindow)).Post("/scan", rt.handleScan)
		r.With(httprate.LimitByIP(scanRateLimit, scanRateLimitWindow)).Post("/scan/batch", rt.handleScanBatch)
		r.Get("/tokens", rt.handleTokens)
		r.Get("/state", rt.handleState)
		r.Get("/session", rt.handleSessionGet)
		r.With(rt.requireAdmin).Get("/session/history", rt.handleSessionHistory)
		r.With(rt.requireAdmin).Post("/session", rt.handleSessionCreate)
		r.With(rt.requireAdmin).Put("/session/{id}", rt.handleSessionUpdate)
		r.With(httprate.LimitByIP(adminAuthRateLimit, adminAuthRateLimitWindow)).Post("/admin/auth", rt.handleAdminAuth)
	})

	return r
}

// cors builds the CORS middleware from the configured allow-list. An
// empty list defaults to allowing any origin, matching the rest of
// the API's default-permissive posture for local/LAN deployments.
func (rt *Router) cors() func(http.Handler) http.Handler {
	origins := rt.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAdmin gates session lifecycle mutation endpoints behind a
// valid admin bearer token.
func (rt *Router) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			logging.AuditAdminTokenRejected(r.RemoteAddr, "missing")
			respondError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "admin bearer token required", nil)
			return
		}
		if _, err := rt.jwt.ValidateAdminToken(tokenString); err != nil {
			if err == auth.ErrTokenExpired {
				logging.AuditAdminTokenRejected(r.RemoteAddr, "expired")
				respondError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "admin token expired", err)
			} else {
				logging.AuditAdminTokenRejected(r.RemoteAddr, "invalid")
				respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid admin token", err)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
