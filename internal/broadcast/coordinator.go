// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package broadcast implements the Broadcast Coordinator: the single
// place that translates internal domain events (session, transaction,
// video, offline) into outbound WebSocket envelopes and decides which
// room(s) receive them. Domain packages never touch the WebSocket hub
// directly - they only emit events on the bus - so this is the one
// component that needs to know the full event-to-room mapping.
package broadcast

import (
	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/offline"
	"github.com/maxepunk/aln-orchestrator/internal/projector"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/txn"
	"github.com/maxepunk/aln-orchestrator/internal/video"
	"github.com/maxepunk/aln-orchestrator/internal/websocket"
)

// subscriber is the stable identity this coordinator registers every
// subscription under, so Stop can clean all of them up with a single
// UnsubscribeAll call regardless of how many emitters it listens to.
const subscriber = "broadcast-coordinator"

// RoomGM is the room every connected GM station joins on handshake.
const RoomGM = "gm"

// DeviceRoom returns the per-device room name a device's own socket
// joins, used to target batch:ack at the device that submitted a batch.
func DeviceRoom(deviceID string) string {
	return "device:" + deviceID
}

// Hub is the subset of *websocket.Hub the coordinator drives.
type Hub interface {
	BroadcastToRoom(room, event string, data interface{})
	BroadcastToRoomExcept(room, event string, data interface{}, exclude *websocket.Client)
	ClientByDeviceID(id string) (*websocket.Client, bool)
	ForEachInRoom(room string, fn func(c *websocket.Client))
}

// Sessions is the subset of *session.Manager needed to build a
// sync:full snapshot for each connected GM.
type Sessions interface {
	GetCurrent() (*models.Session, bool)
	ScannedTokensForDevice(deviceID string) []string
}

// Coordinator subscribes to every domain event the rest of the system
// emits and fans each one out to the WebSocket rooms that need to see
// it.
type Coordinator struct {
	bus      *events.Bus
	hub      Hub
	sessions Sessions
	video    projector.VideoQueue
}

// New creates a Coordinator. Call Start to begin subscribing. sessions
// and video are used only to build the post-batch sync:full snapshot
// fanned out to every GM; either may be nil in contexts
// that never process offline batches (e.g. unit tests exercising a
// narrower slice of the event table).
func New(bus *events.Bus, hub Hub, sessions Sessions, video projector.VideoQueue) *Coordinator {
	return &Coordinator{bus: bus, hub: hub, sessions: sessions, video: video}
}

// Start registers every subscription. It returns an error only if a
// subscription was already registered under this coordinator's
// identity, which would indicate Start was called twice without an
// intervening Stop.
func (c *Coordinator) Start() error {
	subs := []struct {
		emitter string
		event   string
		handler events.Handler
	}{
		{session.Emitter, session.EventCreated, c.onSessionSnapshot},
		{session.Emitter, session.EventUpdated, c.onSessionSnapshot},
		{session.Emitter, session.EventEnded, c.onSessionSnapshot},
		{session.Emitter, session.EventDeviceUpdated, c.onDeviceUpdated},
		{session.Emitter, session.EventDeviceDisconnected, c.onDeviceDisconnected},
		{session.Emitter, session.EventScoresReset, c.onScoresReset},

		{txn.Emitter, txn.EventAdded, c.onTransactionAdded},
		{txn.Emitter, txn.EventScoreUpdated, c.onScoreUpdated},
		{txn.Emitter, txn.EventGroupCompleted, c.onGroupCompleted},

		{video.Emitter, video.EventQueued, c.onVideoItem},
		{video.Emitter, video.EventLoading, c.onVideoItem},
		{video.Emitter, video.EventStatus, c.onVideoStatus},
		{video.Emitter, video.EventProgress, c.onVideoProgress},

		{offline.Emitter, offline.EventQueueProcessed, c.onOfflineQueueProcessed},
		{offline.Emitter, offline.EventBatchAck, c.onBatchAck},
	}

	for _, s := range subs {
		if _, err := c.bus.Subscribe(s.emitter, s.event, subscriber, s.handler); err != nil {
			return err
		}
	}
	return nil
}

// Stop removes every subscription this coordinator registered. Safe to
// call more than once.
func (c *Coordinator) Stop() {
	c.bus.UnsubscribeAll(subscriber)
}

func (c *Coordinator) onSessionSnapshot(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "session:update", payload)
}

func (c *Coordinator) onScoresReset(payload interface{}) {
	sessionID, _ := payload.(string)
	c.hub.BroadcastToRoom(RoomGM, "scores:reset", map[string]string{"sessionId": sessionID})
}

// onDeviceUpdated announces a newly connected device to every other GM
// station. Heartbeat-only updates (IsNew false) are not broadcast -
// GMs already know the device is connected and heartbeats are too
// frequent to be worth a room-wide message.
func (c *Coordinator) onDeviceUpdated(payload interface{}) {
	p, ok := payload.(session.DeviceUpdatedPayload)
	if !ok || !p.IsNew || p.Device == nil {
		return
	}
	var exclude *websocket.Client
	if client, found := c.hub.ClientByDeviceID(p.Device.ID); found {
		exclude = client
	}
	c.hub.BroadcastToRoomExcept(RoomGM, "device:connected", p.Device, exclude)
}

func (c *Coordinator) onDeviceDisconnected(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "device:disconnected", payload)
}

func (c *Coordinator) onTransactionAdded(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "transaction:new", payload)
}

func (c *Coordinator) onScoreUpdated(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "score:updated", payload)
}

func (c *Coordinator) onGroupCompleted(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "group:completed", payload)
}

func (c *Coordinator) onVideoItem(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "video:status", payload)
}

func (c *Coordinator) onVideoStatus(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "video:status", payload)
}

func (c *Coordinator) onVideoProgress(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "video:progress", payload)
}

// onOfflineQueueProcessed announces the batch summary to every GM,
// then pushes each GM station its own sync:full snapshot so
// client-side state converges after the bulk update. Each GM gets its
// own envelope (rather than one shared broadcast) because sync:full
// carries the receiving device's own deviceScannedTokens, the same
// shape wsrouter sends on initial handshake.
func (c *Coordinator) onOfflineQueueProcessed(payload interface{}) {
	c.hub.BroadcastToRoom(RoomGM, "offline:queue:processed", payload)
	c.broadcastSyncFull()
}

// syncFullPayload mirrors wsrouter's handshake snapshot shape so every
// GM receives the same envelope on reconnect and after a batch import.
type syncFullPayload struct {
	models.GameState
	DeviceScannedTokens []string `json:"deviceScannedTokens"`
	Reconnection        bool     `json:"reconnection"`
}

func (c *Coordinator) broadcastSyncFull() {
	if c.sessions == nil {
		return
	}
	sess, _ := c.sessions.GetCurrent()
	state := projector.Project(sess, c.video)
	c.hub.ForEachInRoom(RoomGM, func(client *websocket.Client) {
		client.Send("sync:full", syncFullPayload{
			GameState:           state,
			DeviceScannedTokens: c.sessions.ScannedTokensForDevice(client.DeviceID),
			Reconnection:        true,
		})
	})
}

// onBatchAck is the one event targeted at a single device rather than
// broadcast to every GM: the device that submitted the offline batch
// is the only client that needs the acknowledgement.
func (c *Coordinator) onBatchAck(payload interface{}) {
	p, ok := payload.(offline.BatchAckPayload)
	if !ok {
		return
	}
	c.hub.BroadcastToRoom(DeviceRoom(p.DeviceID), "batch:ack", p)
}
