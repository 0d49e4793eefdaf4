// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package events

import "testing"

func TestSubscribeEmit_DeliversPayload(t *testing.T) {
	b := New()
	var got interface{}
	if _, err := b.Subscribe("session", "session:created", "sub-a", func(p interface{}) {
		got = p
	}); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	b.Emit("session", "session:created", "payload-1")

	if got != "payload-1" {
		t.Errorf("handler received %v, want payload-1", got)
	}
}

func TestSubscribe_DuplicateRejected(t *testing.T) {
	b := New()
	noop := func(interface{}) {}

	if _, err := b.Subscribe("session", "session:created", "sub-a", noop); err != nil {
		t.Fatalf("first Subscribe() error: %v", err)
	}
	if _, err := b.Subscribe("session", "session:created", "sub-a", noop); err == nil {
		t.Fatal("expected error on duplicate subscription")
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := New()
	calls := 0
	reg, err := b.Subscribe("session", "session:created", "sub-a", func(interface{}) {
		calls++
	})
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	b.Unsubscribe(reg)
	b.Unsubscribe(reg) // must not panic or double-remove

	b.Emit("session", "session:created", nil)
	if calls != 0 {
		t.Errorf("handler called %d times after unsubscribe, want 0", calls)
	}

	// Re-subscribing under the same triple must now succeed.
	if _, err := b.Subscribe("session", "session:created", "sub-a", func(interface{}) {
		calls++
	}); err != nil {
		t.Fatalf("re-subscribe after unsubscribe failed: %v", err)
	}
}

func TestUnsubscribeAll_RemovesOnlyThatSubscriber(t *testing.T) {
	b := New()
	var aCalls, bCalls int
	if _, err := b.Subscribe("session", "session:created", "sub-a", func(interface{}) { aCalls++ }); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if _, err := b.Subscribe("session", "session:created", "sub-b", func(interface{}) { bCalls++ }); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	b.UnsubscribeAll("sub-a")
	b.UnsubscribeAll("sub-a") // idempotent

	b.Emit("session", "session:created", nil)
	if aCalls != 0 {
		t.Errorf("sub-a called %d times, want 0", aCalls)
	}
	if bCalls != 1 {
		t.Errorf("sub-b called %d times, want 1", bCalls)
	}
}

func TestEmit_OrderIsRegistrationOrder(t *testing.T) {
	b := New()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		if _, err := b.Subscribe("video", "video:progress", name, func(interface{}) {
			order = append(order, name)
		}); err != nil {
			t.Fatalf("Subscribe(%s) error: %v", name, err)
		}
	}

	b.Emit("video", "video:progress", nil)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestEmit_HandlerPanicDoesNotStopOthers(t *testing.T) {
	b := New()
	secondCalled := false
	if _, err := b.Subscribe("video", "video:error", "panics", func(interface{}) {
		panic("boom")
	}); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if _, err := b.Subscribe("video", "video:error", "survives", func(interface{}) {
		secondCalled = true
	}); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	b.Emit("video", "video:error", nil)

	if !secondCalled {
		t.Error("second handler should still run after first panics")
	}
}

func TestEmit_NoSubscribersIsNoop(t *testing.T) {
	b := New()
	b.Emit("session", "session:created", "x") // must not panic
}
