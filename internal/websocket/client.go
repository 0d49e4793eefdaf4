// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maxepunk/aln-orchestrator/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// clientIDCounter generates unique, monotonically increasing IDs for
// clients, independent of application-level DeviceID, so broadcast
// fan-out has a stable sort key even before a device identifies
// itself.
//
// DETERMINISM: assigned from an atomic counter so clients can be
// sorted into a consistent order for broadcast operations, eliminating
// non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// InboundHandler is invoked once per decoded inbound envelope. It
// receives the raw JSON payload from envelope.Data so the caller
// (internal/wsrouter) can unmarshal it into the event-specific shape
// it expects.
type InboundHandler func(client *Client, event string, data []byte)

// Client is a middleman between one websocket connection and the Hub.
// DeviceID/DeviceType are set once the wsrouter's handshake
// authentication succeeds; until then they are empty.
type Client struct {
	id         uint64
	DeviceID   string
	DeviceType string

	hub     *Hub
	conn    *websocket.Conn
	send    chan Envelope
	onEvent InboundHandler
	onClose func(*Client)

	mu    sync.RWMutex
	rooms map[string]bool
}

// SetOnClose registers fn to run once, after the read pump exits for
// any reason (client-initiated close, network error, or the hub
// shutting down). Used by internal/wsrouter to clear the device's
// socket id via the Session Manager.
func (c *Client) SetOnClose(fn func(*Client)) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// NewClient creates a new Client wrapping conn, registered with hub.
// onEvent is called on the read goroutine for every inbound envelope;
// it must not block.
func NewClient(hub *Hub, conn *websocket.Conn, onEvent InboundHandler) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		send:    make(chan Envelope, 256),
		onEvent: onEvent,
		rooms:   make(map[string]bool),
	}
}

// ID returns the client's unique connection identifier, used for
// deterministic broadcast ordering.
func (c *Client) ID() uint64 {
	return c.id
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *Client) roomSet() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.rooms))
	for r := range c.rooms {
		out[r] = true
	}
	return out
}

// inboundEnvelope mirrors Envelope but leaves Data as raw JSON so the
// handler decides the concrete event-specific shape.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readPump pumps decoded envelopes from the websocket connection to
// onEvent, and unregisters the client from the hub on any read error
// or clean close.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
		c.mu.RLock()
		onClose := c.onClose
		c.mu.RUnlock()
		if onClose != nil {
			onClose(c)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env inboundEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		if c.onEvent != nil {
			c.onEvent(c, env.Event, env.Data)
		}
	}
}

// writePump pumps envelopes from the hub to the websocket connection,
// and sends periodic ping control frames to detect dead connections.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case envelope, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}
			if err := c.conn.WriteJSON(envelope); err != nil {
				logging.Error().Err(err).Msg("failed to write envelope")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues a single envelope for direct delivery to this client
// only (e.g. transaction:result, gm:command:ack - responses addressed
// to the sending socket, never broadcast).
func (c *Client) Send(event string, data interface{}) {
	select {
	case c.send <- NewEnvelope(event, data):
	default:
		logging.Warn().Str("event", event).Msg("client send buffer full, dropping message")
	}
}

// Start begins the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
