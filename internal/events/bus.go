// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package events implements the in-process domain event bus that
// decouples the Session Manager, Transaction Engine, Video Queue, and
// Offline Batch Handler from their consumers (principally the
// Broadcast Coordinator). Every subscription is keyed by the
// (emitter, event, subscriber) triple so that cleanup on shutdown or
// reconfiguration is idempotent: unsubscribing twice, or subscribing
// the same handler twice, is either a safe no-op or a caught error
// rather than a silent duplicate that would double-broadcast.
package events

import (
	"fmt"
	"sort"
	"sync"

	"github.com/maxepunk/aln-orchestrator/internal/logging"
)

// Handler receives the payload emitted for one domain event.
type Handler func(payload interface{})

// key identifies a unique subscription slot.
type key struct {
	emitter    string
	event      string
	subscriber string
}

// Bus is a synchronous, in-process publish/subscribe registry.
// Emit calls every matching handler on the calling goroutine, in the
// order subscriptions were registered; callers that need
// fire-and-forget semantics should dispatch their own goroutine
// inside the handler.
type Bus struct {
	mu   sync.RWMutex
	subs map[key]Handler
	// order preserves registration order per (emitter, event) so
	// fan-out to rooms is deterministic across runs, matching the
	// rest of the codebase's preference for sorted/ordered iteration
	// over map iteration.
	order map[string][]key
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{
		subs:  make(map[key]Handler),
		order: make(map[string][]key),
	}
}

func routeKey(emitter, event string) string {
	return emitter + "\x00" + event
}

// Subscribe registers handler to receive every event named `event`
// emitted by `emitter`, under the stable identity `subscriber` (e.g.
// "broadcast-coordinator"). Subscribing the same (emitter, event,
// subscriber) triple twice without an intervening Unsubscribe returns
// an error instead of silently registering a second handler - this is
// the guard against the duplicate-broadcast class of bug.
func (b *Bus) Subscribe(emitter, event, subscriber string, handler Handler) (Registration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{emitter: emitter, event: event, subscriber: subscriber}
	if _, exists := b.subs[k]; exists {
		return Registration{}, fmt.Errorf("events: %s already subscribed to %s:%s", subscriber, emitter, event)
	}

	b.subs[k] = handler
	rk := routeKey(emitter, event)
	b.order[rk] = append(b.order[rk], k)

	return Registration{bus: b, key: k}, nil
}

// Unsubscribe removes a subscription. It is idempotent: calling it
// more than once for the same Registration, or for one that was never
// successfully created, is a no-op.
func (b *Bus) Unsubscribe(reg Registration) {
	if reg.bus == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked(reg.key)
}

func (b *Bus) unsubscribeLocked(k key) {
	if _, exists := b.subs[k]; !exists {
		return
	}
	delete(b.subs, k)

	rk := routeKey(k.emitter, k.event)
	remaining := b.order[rk][:0]
	for _, existing := range b.order[rk] {
		if existing != k {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == 0 {
		delete(b.order, rk)
	} else {
		b.order[rk] = remaining
	}
}

// UnsubscribeAll removes every subscription registered under
// `subscriber`, regardless of emitter or event. Components call this
// once during shutdown; it is safe to call more than once.
func (b *Bus) UnsubscribeAll(subscriber string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var toRemove []key
	for k := range b.subs {
		if k.subscriber == subscriber {
			toRemove = append(toRemove, k)
		}
	}
	sort.Slice(toRemove, func(i, j int) bool {
		if toRemove[i].emitter != toRemove[j].emitter {
			return toRemove[i].emitter < toRemove[j].emitter
		}
		return toRemove[i].event < toRemove[j].event
	})
	for _, k := range toRemove {
		b.unsubscribeLocked(k)
	}
}

// Emit calls every handler subscribed to `event` from `emitter`, in
// registration order. A handler panic is recovered and logged so one
// misbehaving subscriber cannot take down the emitting goroutine
// (typically a session-holding mutex owner).
func (b *Bus) Emit(emitter, event string, payload interface{}) {
	b.mu.RLock()
	rk := routeKey(emitter, event)
	keys := make([]key, len(b.order[rk]))
	copy(keys, b.order[rk])
	handlers := make([]Handler, 0, len(keys))
	for _, k := range keys {
		handlers = append(handlers, b.subs[k])
	}
	b.mu.RUnlock()

	for i, h := range handlers {
		b.invoke(keys[i], h, payload)
	}
}

func (b *Bus) invoke(k key, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Interface("panic", r).
				Str("emitter", k.emitter).
				Str("event", k.event).
				Str("subscriber", k.subscriber).
				Msg("event handler panicked")
		}
	}()
	h(payload)
}

// Registration is an opaque handle returned by Subscribe, passed back
// to Unsubscribe.
type Registration struct {
	bus *Bus
	key key
}
