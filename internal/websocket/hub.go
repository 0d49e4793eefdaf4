// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/logging"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Envelope is the wire format every outbound event is wrapped in
//: {event, data, timestamp}. Inbound client events follow
// the same shape, decoded by the wsrouter package.
type Envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// NewEnvelope wraps data for event, stamping the current time.
func NewEnvelope(event string, data interface{}) Envelope {
	return Envelope{Event: event, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// roomMessage is an internal broadcast request: deliver envelope to
// every client currently a member of room, except excludeClient (if
// set) - used for device:connected, which reaches every other GM but
// not the device whose connection triggered it.
type roomMessage struct {
	room          string
	envelope      Envelope
	excludeClient *Client
}

// Hub maintains the set of active clients, their room memberships,
// and fans out room-addressed broadcasts to every member.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan roomMessage
	Register   chan *Client
	Unregister chan *Client
	join       chan roomMembership
	mu         sync.RWMutex
}

type roomMembership struct {
	client *Client
	room   string
}

// NewHub creates a new, empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan roomMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan roomMembership, 64),
	}
}

// RunWithContext starts the hub's event loop with context support for
// graceful shutdown. Designed for use with suture supervision.
//
// DETERMINISM: uses priority-based selection so client lifecycle
// events are always applied before the next broadcast is processed,
// and room-join requests before either - client state is consistent
// before any message fan-out decision is made.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		case m := <-h.join:
			h.joinRoom(m.client, m.room)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case m := <-h.join:
			h.joinRoom(m.client, m.room)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	logging.Info().Int("total_clients", h.ClientCount()).Msg("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		for room := range client.roomSet() {
			if members, ok := h.rooms[room]; ok {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, room)
				}
			}
		}
		close(client.send)
	}
	h.mu.Unlock()
	logging.Info().Int("total_clients", h.ClientCount()).Msg("websocket client disconnected")
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.addRoom(room)
	h.mu.Unlock()
}

// JoinRoom requests that client join room. Safe to call from any
// goroutine; the membership change is applied on the hub's loop.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.join <- roomMembership{client: client, room: room}
}

// BroadcastToRoom wraps data in the event envelope and queues it for
// delivery to every current member of room. Non-blocking: if the
// internal queue is full the broadcast is dropped and logged, rather
// than stalling the emitting domain mutation.
func (h *Hub) BroadcastToRoom(room, event string, data interface{}) {
	msg := roomMessage{room: room, envelope: NewEnvelope(event, data)}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("room", room).Str("event", event).Msg("broadcast queue full, dropping message")
	}
}

// BroadcastToRoomExcept behaves like BroadcastToRoom but skips
// exclude, if it is currently a member of room.
func (h *Hub) BroadcastToRoomExcept(room, event string, data interface{}, exclude *Client) {
	msg := roomMessage{room: room, envelope: NewEnvelope(event, data), excludeClient: exclude}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("room", room).Str("event", event).Msg("broadcast queue full, dropping message")
	}
}

// deliver sends msg to every member of msg.room in deterministic
// (ID-sorted) order, dropping and unregistering any client whose send
// buffer is full.
func (h *Hub) deliver(msg roomMessage) {
	h.mu.Lock()
	members, ok := h.rooms[msg.room]
	if !ok || len(members) == 0 {
		h.mu.Unlock()
		return
	}
	clients := make([]*Client, 0, len(members))
	for c := range members {
		if c == msg.excludeClient {
			continue
		}
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID() < clients[j].ID() })
	h.mu.Unlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- msg.envelope:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		h.unregisterClient(client)
	}
}

// ClientByDeviceID returns the currently registered client whose
// authenticated DeviceID matches id, if any. Used by the Broadcast
// Coordinator to exclude the connecting device from its own
// device:connected announcement.
func (h *Hub) ClientByDeviceID(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.DeviceID == id {
			return c, true
		}
	}
	return nil, false
}

// ForEachInRoom calls fn once for every client currently a member of
// room, in deterministic (ID-sorted) order. Used to send a per-device
// payload (e.g. a sync:full snapshot with device-specific
// deviceScannedTokens) to every member of a room, rather than a
// single shared broadcast envelope.
func (h *Hub) ForEachInRoom(room string, fn func(c *Client)) {
	h.mu.RLock()
	members := h.rooms[room]
	clients := make([]*Client, 0, len(members))
	for c := range members {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].ID() < clients[j].ID() })
	for _, c := range clients {
		fn(c)
	}
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()
	reason := getShutdownReason(ctx)
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients gracefully closes all connected WebSocket clients,
// in deterministic ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID() < clients[j].ID() })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.mu.Unlock()
	logging.Info().Msg("closed all websocket clients during shutdown")
}
