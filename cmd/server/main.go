// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package main is the entry point for the ALN Orchestrator: the
// real-time coordination server for a physical location-based
// immersive game.
//
// # Application Architecture
//
// The server initializes components through the explicit startup
// state machine in internal/bootstrap:
//
//  1. UNINITIALIZED: configuration and logging only.
//  2. SERVICES_READY: token catalog, persistence store, session
//     manager, transaction engine, video queue, event bus and
//     broadcast coordinator constructed and wired to each other.
//  3. HANDLERS_READY: the WebSocket router and HTTP API built against
//     the services from step 2.
//  4. LISTENING: the HTTP server (carrying both the REST API and the
//     WebSocket upgrade endpoint) is accepting connections, supervised
//     by a suture tree alongside the video poller.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, an optional YAML config
// file, built-in defaults. See internal/config.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the
// supervisor tree stops the HTTP server (draining in-flight requests
// up to server.shutdowntimeout), the WebSocket hub, and the video
// poller, then the Broadcast Coordinator's event-bus subscriptions are
// torn down and the bootstrap state machine resets to UNINITIALIZED.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/admin"
	"github.com/maxepunk/aln-orchestrator/internal/auth"
	"github.com/maxepunk/aln-orchestrator/internal/bootstrap"
	"github.com/maxepunk/aln-orchestrator/internal/broadcast"
	"github.com/maxepunk/aln-orchestrator/internal/catalog"
	"github.com/maxepunk/aln-orchestrator/internal/config"
	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/httpapi"
	"github.com/maxepunk/aln-orchestrator/internal/logging"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/offline"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/store"
	"github.com/maxepunk/aln-orchestrator/internal/supervisor"
	"github.com/maxepunk/aln-orchestrator/internal/supervisor/services"
	"github.com/maxepunk/aln-orchestrator/internal/txn"
	"github.com/maxepunk/aln-orchestrator/internal/video"
	"github.com/maxepunk/aln-orchestrator/internal/websocket"
	"github.com/maxepunk/aln-orchestrator/internal/wsrouter"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("starting ALN Orchestrator")

	boot := &bootstrap.Machine{}

	svc, err := buildServices(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build services")
	}
	if err := boot.MarkServicesReady(); err != nil {
		logging.Fatal().Err(err).Msg("bootstrap: services")
	}
	logging.Info().Str("state", boot.State().String()).Msg("services ready")

	if err := svc.coordinator.Start(); err != nil {
		logging.Fatal().Err(err).Msg("failed to start broadcast coordinator")
	}

	httpRouter, wsRouter := buildHandlers(cfg, svc)
	if err := boot.MarkHandlersReady(); err != nil {
		logging.Fatal().Err(err).Msg("bootstrap: handlers")
	}
	logging.Info().Str("state", boot.State().String()).Msg("handlers ready")

	mux := http.NewServeMux()
	mux.Handle("/", httpRouter.Handler())
	mux.Handle("/ws", wsRouter)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	tree.AddDataService(services.NewVideoPollerService(svc.videoQueue, cfg.VLC.PollInterval))
	tree.AddDataService(services.NewSessionTimeoutService(svc.sessions, cfg.SessionTimeout(), time.Minute))
	tree.AddMessagingService(services.NewWebSocketHubService(svc.hub))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	if err := boot.MarkListening(); err != nil {
		logging.Fatal().Err(err).Msg("bootstrap: listening")
	}
	logging.Info().
		Str("state", boot.State().String()).
		Str("addr", httpServer.Addr).
		Msg("orchestrator listening")

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, u := range unstopped {
			logging.Warn().Str("service", u.Name).Msg("service failed to stop")
		}
	}

	svc.coordinator.Stop()
	boot.Reset()

	logging.Info().Msg("orchestrator stopped gracefully")
}

// appServices bundles every SERVICES_READY-stage component so the two
// bootstrap phases can be expressed as small, separately testable
// functions instead of one long main().
type appServices struct {
	catalog     *catalog.Catalog
	store       *store.Store
	bus         *events.Bus
	sessions    *session.Manager
	engine      *txn.Engine
	vlcClient   *video.VLCClient
	videoQueue  *video.Queue
	offline     *offline.Handler
	adminCmd    *admin.Handler
	hub         *websocket.Hub
	coordinator *broadcast.Coordinator
	jwt         *auth.JWTManager
	passwords   *auth.PasswordManager
}

// buildServices constructs every domain component and wires the
// cross-package dependencies that can't be expressed as constructor
// parameters alone (the Transaction Engine <-> Video Queue cycle).
// Failure to load the token catalog is fatal: the system has no
// default tokens.
func buildServices(cfg *config.Config) (*appServices, error) {
	cat, err := catalog.Load(cfg.TokensFile)
	if err != nil {
		return nil, fmt.Errorf("loading token catalog: %w", err)
	}
	logging.Info().Int("tokens", cat.Len()).Msg("token catalog loaded")

	persistenceStore, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening persistence store: %w", err)
	}

	bus := events.New()
	sessions := session.NewManager(persistenceStore, bus, cfg.Session.MaxDevices)
	if err := sessions.LoadCurrent(); err != nil {
		return nil, fmt.Errorf("loading current session: %w", err)
	}

	engine := txn.New(sessions, cat, bus, nil)

	vlcClient := video.NewVLCClient(cfg.VLC, video.DefaultBreakerConfig())
	videoQueue := video.New(vlcClient, bus, cfg.VLC.RequestTimeout)
	engine.SetVideoEnqueuer(videoQueue)

	// Mirror every queue mutation into the session document, and
	// rebuild in-flight playback from the previous run's snapshot, so
	// queued videos survive an orchestrator restart mid-game.
	videoQueue.SetOnChange(func(items []models.VideoQueueItem) {
		if err := sessions.UpdateVideoQueue(items); err != nil {
			logging.Warn().Err(err).Msg("failed to persist video queue snapshot")
		}
	})
	if sess, ok := sessions.GetCurrent(); ok && len(sess.VideoQueue) > 0 {
		videoQueue.Restore(sess.VideoQueue)
	}

	offlineHandler := offline.New(engine, bus, cfg.OfflineQueue.CacheSize, cfg.OfflineQueue.CacheTTL, cfg.OfflineBatchMaxAge())

	adminCmd := admin.New(sessions, videoQueue)

	jwtManager, err := auth.NewJWTManager(cfg.Admin)
	if err != nil {
		return nil, fmt.Errorf("initializing JWT manager: %w", err)
	}

	passwordHash := cfg.Admin.PasswordHash
	if passwordHash == "" {
		logging.Warn().Msg("admin.password not configured; admin auth endpoints will reject every login")
		// An admin password is required for bcrypt.CompareHashAndPassword
		// to have anything to compare against; mint a hash of a value no
		// config input can ever equal, so PasswordManager.Validate is
		// always safe to call and always returns false instead of the
		// handler needing a separate nil check on every request.
		unguessable, genErr := auth.HashPassword(uuid.NewString() + uuid.NewString())
		if genErr != nil {
			return nil, fmt.Errorf("generating placeholder admin password hash: %w", genErr)
		}
		passwordHash = unguessable
	}
	passwords, err := auth.NewPasswordManager(passwordHash)
	if err != nil {
		return nil, fmt.Errorf("initializing password manager: %w", err)
	}

	hub := websocket.NewHub()
	coordinator := broadcast.New(bus, hub, sessions, videoQueue)

	return &appServices{
		catalog:     cat,
		store:       persistenceStore,
		bus:         bus,
		sessions:    sessions,
		engine:      engine,
		vlcClient:   vlcClient,
		videoQueue:  videoQueue,
		offline:     offlineHandler,
		adminCmd:    adminCmd,
		hub:         hub,
		coordinator: coordinator,
		jwt:         jwtManager,
		passwords:   passwords,
	}, nil
}

// buildHandlers constructs the HTTP API router and the WebSocket
// router against an already-SERVICES_READY bundle. Splitting this out
// of buildServices is what makes the HANDLERS_READY transition in
// main meaningful instead of a single undifferentiated setup blob.
func buildHandlers(cfg *config.Config, svc *appServices) (*httpapi.Router, *wsrouter.Router) {
	httpRouter := httpapi.New(
		svc.catalog,
		svc.sessions,
		svc.engine,
		svc.offline,
		svc.adminCmd,
		svc.jwt,
		svc.passwords,
		svc.videoQueue,
		cfg.CORS.Origins,
	)

	wsRouter := wsrouter.New(
		svc.hub,
		svc.jwt,
		svc.sessions,
		svc.engine,
		svc.adminCmd,
		svc.videoQueue,
		cfg.CORS.Origins,
	)

	return httpRouter, wsRouter
}
