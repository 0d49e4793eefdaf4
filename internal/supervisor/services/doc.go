// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

/*
Package services provides suture.Service wrappers for the orchestrator's
supervised components.

This package adapts existing application components to the suture v4
supervision model, translating their native lifecycle (ListenAndServe,
RunWithContext, a polling loop) into suture's context-aware Serve
pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (ListenAndServe/RunWithContext/ticker to Serve)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub with context support
  - Delegates to the hub's own RunWithContext, which already
    closes all clients on shutdown

Video Poller (VideoPollerService):
  - Calls video.Queue.PollOnce on a fixed interval (~1s)
  - Reconciles the queue's idea of playback against VLC's actual
    status; isolated in the data layer so a VLC outage can't affect
    the API or messaging layers

# Usage Example

	import (
	    "net/http"
	    "time"

	    "github.com/maxepunk/aln-orchestrator/internal/supervisor"
	    "github.com/maxepunk/aln-orchestrator/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub, queue *video.Queue) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    httpSvc := services.NewHTTPServerService(server, 10*time.Second)
	    tree.AddAPIService(httpSvc)

	    wsSvc := services.NewWebSocketHubService(hub)
	    tree.AddMessagingService(wsSvc)

	    pollSvc := services.NewVideoPollerService(queue, time.Second)
	    tree.AddDataService(pollSvc)

	    tree.Serve(ctx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Thread Safety

All service wrappers are safe for concurrent use. Multiple concurrent
Serve calls on the same wrapper are not supported.

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
*/
package services
