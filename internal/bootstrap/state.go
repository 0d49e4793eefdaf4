// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package bootstrap implements the startup state machine:
//
//	UNINITIALIZED -> SERVICES_READY -> HANDLERS_READY -> LISTENING
//
// Wiring services, handlers and the listener in one ad-hoc sequence
// leaves no way to tell, from outside, whether a given step actually
// completed - a broken startup path can stand up WebSocket handlers
// before the Session Manager exists, leaving half of every request
// silently nil. This package makes each transition an explicit,
// checkable call instead of an implicit ordering of statements in
// main().
package bootstrap

import (
	"fmt"
	"sync"
)

// State is a step in the startup sequence. States only ever advance
// forward, except via Reset, which is the shutdown/restart path used
// by test isolation and by a future hot-reload.
type State int

const (
	// Uninitialized is the zero value: nothing has been constructed yet.
	Uninitialized State = iota

	// ServicesReady means every domain component (catalog, store,
	// session manager, transaction engine, video queue, event bus,
	// broadcast coordinator) has been constructed and wired to each
	// other.
	ServicesReady

	// HandlersReady means the WebSocket router and HTTP API have been
	// constructed against the services from ServicesReady.
	HandlersReady

	// Listening means the HTTP server (and therefore the WebSocket
	// upgrade endpoint it shares) is accepting connections.
	Listening
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case ServicesReady:
		return "SERVICES_READY"
	case HandlersReady:
		return "HANDLERS_READY"
	case Listening:
		return "LISTENING"
	default:
		return "UNKNOWN"
	}
}

// Machine guards the startup sequence. The zero value is ready to use,
// starting at Uninitialized.
type Machine struct {
	mu    sync.Mutex
	state State
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// advance transitions from "from" to "to", returning an error if the
// machine is not currently in "from". This is the only primitive the
// exported Mark* methods use, so every transition is an explicit,
// named precondition rather than a bare state assignment.
func (m *Machine) advance(from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return fmt.Errorf("bootstrap: cannot enter %s from %s, expected %s", to, m.state, from)
	}
	m.state = to
	return nil
}

// MarkServicesReady transitions Uninitialized -> ServicesReady. Call
// once every domain component has been constructed.
func (m *Machine) MarkServicesReady() error {
	return m.advance(Uninitialized, ServicesReady)
}

// MarkHandlersReady transitions ServicesReady -> HandlersReady. Call
// once the WebSocket router and HTTP API have been constructed.
// Constructing handlers before services are ready is a programming
// error in the orchestrator, so this returns an error
// rather than silently proceeding.
func (m *Machine) MarkHandlersReady() error {
	return m.advance(ServicesReady, HandlersReady)
}

// MarkListening transitions HandlersReady -> Listening. Call once the
// HTTP server has started accepting connections.
func (m *Machine) MarkListening() error {
	return m.advance(HandlersReady, Listening)
}

// Reset returns the machine to Uninitialized regardless of its
// current state, for use during graceful shutdown or test teardown.
// Callers are responsible for having already torn down whatever the
// current state implies is running (e.g. calling the Broadcast
// Coordinator's Stop to drop its event-bus subscriptions) before
// calling Reset - Reset only resets the bookkeeping, not the world.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Uninitialized
}
