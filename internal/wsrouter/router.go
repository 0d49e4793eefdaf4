// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package wsrouter implements the WebSocket handshake and inbound
// event routing: JWT-authenticated upgrade, room
// assignment, the post-connection sync:full snapshot, and dispatch of
// every inbound envelope to the Transaction Engine or Admin Command
// Handler. Outbound domain-event fan-out lives in internal/broadcast;
// this package only ever writes directly to the connecting socket.
package wsrouter

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/maxepunk/aln-orchestrator/internal/admin"
	"github.com/maxepunk/aln-orchestrator/internal/auth"
	"github.com/maxepunk/aln-orchestrator/internal/logging"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/projector"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/txn"
	"github.com/maxepunk/aln-orchestrator/internal/websocket"
)

// RoomGM is the room every GM station socket joins.
const RoomGM = "gm"

// DeviceRoom returns the per-device room a device's own socket joins,
// letting the Broadcast Coordinator target batch:ack at exactly one
// connection.
func DeviceRoom(deviceID string) string {
	return "device:" + deviceID
}

// TeamRoom returns the room for a team, joined by devices that
// identify with a team at handshake time.
func TeamRoom(teamID string) string {
	return "team:" + teamID
}

// Router upgrades authenticated WebSocket connections and routes
// their inbound traffic.
type Router struct {
	hub      *websocket.Hub
	jwt      *auth.JWTManager
	sessions *session.Manager
	engine   *txn.Engine
	admin    *admin.Handler
	video    projector.VideoQueue
	upgrader gorillaws.Upgrader
}

// New constructs a Router bound to hub for client registration and
// room membership.
func New(hub *websocket.Hub, jwtManager *auth.JWTManager, sessions *session.Manager, engine *txn.Engine, adminHandler *admin.Handler, video projector.VideoQueue, allowedOrigins []string) *Router {
	return &Router{
		hub:      hub,
		jwt:      jwtManager,
		sessions: sessions,
		engine:   engine,
		admin:    adminHandler,
		video:    video,
		upgrader: gorillaws.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

// originChecker builds a gorilla CheckOrigin func honoring the same
// CORS allow-list as the HTTP API. A wildcard entry ("*") accepts any
// origin, matching the default-permissive posture of the rest of the
// API when no explicit origins are configured.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// handshakePayload is the query-string shape of a connecting socket's
// credentials: {token, deviceId, deviceType, version}. teamId is an
// orchestrator extension letting a station associated with a team join
// that team's room at connect time.
type handshakePayload struct {
	Token      string
	DeviceID   string
	DeviceType string
	Version    string
	TeamID     string
}

func parseHandshake(r *http.Request) handshakePayload {
	q := r.URL.Query()
	return handshakePayload{
		Token:      q.Get("token"),
		DeviceID:   q.Get("deviceId"),
		DeviceType: q.Get("deviceType"),
		Version:    q.Get("version"),
		TeamID:     q.Get("teamId"),
	}
}

// validDeviceType restricts the WebSocket surface to GM and admin
// stations. Player scanners are HTTP-only: their whole protocol is
// fire-and-forget POSTs, so a player-typed handshake is a
// misconfigured client, not a supported connection.
func validDeviceType(t string) bool {
	switch models.DeviceType(t) {
	case models.DeviceGM, models.DeviceAdmin:
		return true
	default:
		return false
	}
}

// ServeHTTP upgrades the connection after validating the handshake
// JWT and device identity, entirely before the HTTP -> WebSocket
// switch, so a rejected handshake gets a normal HTTP error status
// instead of an opened-then-closed socket.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hs := parseHandshake(r)
	if hs.DeviceID == "" || !validDeviceType(hs.DeviceType) {
		logging.AuditDeviceHandshakeRejected(hs.DeviceID, hs.DeviceType, r.RemoteAddr, "invalid handshake")
		http.Error(w, "INVALID_HANDSHAKE", http.StatusBadRequest)
		return
	}

	if _, err := rt.jwt.ValidateDeviceToken(hs.Token); err != nil {
		logging.AuditDeviceHandshakeRejected(hs.DeviceID, hs.DeviceType, r.RemoteAddr, "invalid token")
		http.Error(w, "INVALID_TOKEN", http.StatusUnauthorized)
		return
	}

	conn, err := rt.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(rt.hub, conn, rt.onEvent)
	client.DeviceID = hs.DeviceID
	client.DeviceType = hs.DeviceType

	rt.hub.Register <- client
	rt.hub.JoinRoom(client, DeviceRoom(hs.DeviceID))
	if models.DeviceType(hs.DeviceType) == models.DeviceGM {
		rt.hub.JoinRoom(client, RoomGM)
	}
	if hs.TeamID != "" {
		rt.hub.JoinRoom(client, TeamRoom(hs.TeamID))
	}

	_, isNew, err := rt.sessions.AddDevice(models.DeviceConnection{
		ID:        hs.DeviceID,
		Type:      models.DeviceType(hs.DeviceType),
		Version:   hs.Version,
		IPAddress: r.RemoteAddr,
		SocketID:  hs.DeviceID,
	})
	switch err {
	case nil, session.ErrNoActiveSession:
	case session.ErrMaxDevices:
		// The socket stays open - the device can still observe
		// broadcasts - but it is not recorded in the session, and the
		// operator sees why in the logs.
		logging.Warn().Str("deviceId", hs.DeviceID).Int("max", rt.sessions.MaxDevices()).Msg("device limit reached, connection not recorded in session")
	default:
		logging.Warn().Err(err).Str("deviceId", hs.DeviceID).Msg("failed to register device")
	}

	client.SetOnClose(func(c *websocket.Client) {
		if derr := rt.sessions.DisconnectDevice(hs.DeviceID, "socket closed"); derr != nil {
			logging.Warn().Err(derr).Str("deviceId", hs.DeviceID).Msg("failed to record device disconnect")
		}
	})

	client.Send("sync:full", rt.syncFullPayload(hs.DeviceID, !isNew))
	client.Start()
}

// syncFullPayload builds the full reconnection snapshot:
// the current GameState plus the connecting device's own scanned-token
// set, which is per-device state the shared GameState does not carry.
type syncFullPayload struct {
	models.GameState
	DeviceScannedTokens []string `json:"deviceScannedTokens"`
	Reconnection        bool     `json:"reconnection"`
}

func (rt *Router) syncFullPayload(deviceID string, reconnection bool) syncFullPayload {
	sess, _ := rt.sessions.GetCurrent()
	state := projector.Project(sess, rt.video)
	return syncFullPayload{
		GameState:           state,
		DeviceScannedTokens: rt.sessions.ScannedTokensForDevice(deviceID),
		Reconnection:        reconnection,
	}
}

type transactionSubmitPayload struct {
	TokenID string          `json:"tokenId"`
	TeamID  string          `json:"teamId"`
	Mode    models.ScanMode `json:"mode"`
}

type gmCommandPayload struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// onEvent dispatches one decoded inbound envelope. It runs on the client's read goroutine and must not
// block - every branch here is either in-memory or delegates to a
// component that itself does not block on I/O longer than a bounded
// VLC command timeout.
func (rt *Router) onEvent(client *websocket.Client, event string, data []byte) {
	switch event {
	case "transaction:submit":
		rt.handleTransactionSubmit(client, data)
	case "gm:command":
		rt.handleGMCommand(client, data)
	case "sync:request":
		client.Send("sync:full", rt.syncFullPayload(client.DeviceID, true))
	case "heartbeat":
		if err := rt.sessions.UpdateDeviceHeartbeat(client.DeviceID); err != nil {
			logging.Debug().Err(err).Str("deviceId", client.DeviceID).Msg("heartbeat update failed")
		}
		client.Send("heartbeat:ack", map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)})
	case "gm:identify":
		// No-op: GM stations send this purely to confirm liveness of
		// the gm:command channel; identity was already established at
		// handshake.
	default:
		logging.Debug().Str("event", event).Msg("unhandled inbound websocket event")
	}
}

func (rt *Router) handleTransactionSubmit(client *websocket.Client, data []byte) {
	var p transactionSubmitPayload
	if err := json.Unmarshal(data, &p); err != nil {
		client.Send("transaction:result", models.Transaction{Status: models.TxError})
		return
	}
	tx := rt.engine.Submit(txn.ScanRequest{
		TokenID:    p.TokenID,
		TeamID:     p.TeamID,
		DeviceID:   client.DeviceID,
		DeviceType: models.DeviceType(client.DeviceType),
		Mode:       p.Mode,
	})
	client.Send("transaction:result", tx)
}

func (rt *Router) handleGMCommand(client *websocket.Client, data []byte) {
	var p gmCommandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		client.Send("gm:command:ack", admin.Result{Success: false, Error: "INVALID_PAYLOAD"})
		return
	}
	result := rt.admin.HandleCommand(p.Action, p.Payload)
	client.Send("gm:command:ack", result)
}
