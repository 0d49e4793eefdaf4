// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

/*
Package websocket provides the room-addressable hub/client transport
the orchestrator's WebSocket Router is built on (internal/wsrouter).

Key Components:

  - Hub: tracks connected clients and their room memberships, and fans
    out room-addressed broadcasts to every current member
  - Client: one WebSocket connection's read/write goroutines
  - Envelope: the wire format every event is wrapped in -
    {event, data, timestamp}

Architecture:

Clients join rooms after connecting (device:<id>, gm, team:<id> -
see internal/wsrouter). A broadcast names a room, not a client list;
the hub resolves membership at delivery time:

	┌──────────┐
	│   Hub    │── room "gm" ──▶ every GM client
	└────┬─────┘── room "device:D1" ──▶ just D1
	     │
	  clients, rooms

Each client has two goroutines:
  - readPump: decodes inbound envelopes, hands them to an InboundHandler
  - writePump: serializes outbound envelopes, sends keepalive pings

Connection Lifecycle:

 1. Client connects via HTTP upgrade (internal/wsrouter authenticates
    the handshake before a Client is ever constructed)
 2. Hub registers the client, wsrouter joins it to its rooms
 3. Hub fans out broadcasts to room members in deterministic,
    ID-sorted order
 4. Client disconnects (network error or explicit close)
 5. Hub unregisters the client, removing it from every room it had
    joined, and closes its send channel

Thread Safety:

The package is fully thread-safe: the Hub's client/room maps are
mutex-guarded, and all lifecycle/broadcast decisions are applied on a
single event-loop goroutine (RunWithContext) fed by channels - a
register, unregister, or room-join is always fully applied before the
next broadcast is evaluated.

Configuration:

  - writeWait: 10 seconds (time allowed to write a message)
  - pongWait: 60 seconds (time allowed to read a pong)
  - pingPeriod: 54 seconds (9/10 of pongWait, keeps connections alive)
  - maxMessageSize: 512 KB
*/
package websocket
