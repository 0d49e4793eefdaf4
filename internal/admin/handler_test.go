// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package admin

import (
	"encoding/json"
	"testing"

	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/store"
)

type fakeVideo struct {
	resumeCalled, pauseCalled, skipCalled, clearCalled bool
	err                                                error
}

func (f *fakeVideo) Resume() error { f.resumeCalled = true; return f.err }
func (f *fakeVideo) Pause() error  { f.pauseCalled = true; return f.err }
func (f *fakeVideo) Skip() error   { f.skipCalled = true; return f.err }
func (f *fakeVideo) Clear() error  { f.clearCalled = true; return f.err }

func newTestHandler(t *testing.T) (*Handler, *session.Manager, *fakeVideo) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	sessions := session.NewManager(st, events.New(), 10)
	video := &fakeVideo{}
	return New(sessions, video), sessions, video
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}
	return b
}

func TestHandleCommand_UnknownAction(t *testing.T) {
	h, _, _ := newTestHandler(t)
	result := h.HandleCommand("not:a:real:action", nil)
	if result.Success || result.Error != "UNKNOWN_ACTION" {
		t.Fatalf("result = %+v, want UNKNOWN_ACTION", result)
	}
}

func TestHandleCommand_SessionLifecycle(t *testing.T) {
	h, _, _ := newTestHandler(t)

	create := h.HandleCommand(ActionSessionCreate, mustJSON(t, sessionCreatePayload{Name: "Night One", Teams: []string{"red"}}))
	if !create.Success {
		t.Fatalf("session:create failed: %+v", create)
	}

	if r := h.HandleCommand(ActionSessionPause, nil); !r.Success {
		t.Fatalf("session:pause failed: %+v", r)
	}
	if r := h.HandleCommand(ActionSessionResume, nil); !r.Success {
		t.Fatalf("session:resume failed: %+v", r)
	}

	end := h.HandleCommand(ActionSessionEnd, mustJSON(t, sessionEndPayload{Reason: "wrap up"}))
	if !end.Success {
		t.Fatalf("session:end failed: %+v", end)
	}

	// No session active now - pause should fail cleanly with an ack,
	// not an error return.
	if r := h.HandleCommand(ActionSessionPause, nil); r.Success || r.Error != "NO_ACTIVE_SESSION" {
		t.Fatalf("session:pause after end = %+v, want NO_ACTIVE_SESSION", r)
	}
}

func TestHandleCommand_ScoreAdjustRequiresTeamID(t *testing.T) {
	h, sessions, _ := newTestHandler(t)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	r := h.HandleCommand(ActionScoreAdjust, mustJSON(t, scoreAdjustPayload{Delta: 100}))
	if r.Success || r.Error != "INVALID_PAYLOAD" {
		t.Fatalf("result = %+v, want INVALID_PAYLOAD", r)
	}

	r = h.HandleCommand(ActionScoreAdjust, mustJSON(t, scoreAdjustPayload{TeamID: "red", Delta: 100, Reason: "bonus"}))
	if !r.Success {
		t.Fatalf("score:adjust failed: %+v", r)
	}
}

func TestHandleCommand_VideoControlsDelegateToQueue(t *testing.T) {
	h, sessions, video := newTestHandler(t)
	if _, err := sessions.CreateSession("Night One", nil); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	for _, tc := range []struct {
		action string
		check  func() bool
	}{
		{ActionVideoPlay, func() bool { return video.resumeCalled }},
		{ActionVideoPause, func() bool { return video.pauseCalled }},
		{ActionVideoSkip, func() bool { return video.skipCalled }},
		{ActionVideoQueueClear, func() bool { return video.clearCalled }},
	} {
		r := h.HandleCommand(tc.action, nil)
		if !r.Success {
			t.Fatalf("%s failed: %+v", tc.action, r)
		}
		if !tc.check() {
			t.Fatalf("%s did not reach the video queue", tc.action)
		}
	}
}

func TestHandleCommand_VideoUnavailableWithoutQueue(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	sessions := session.NewManager(st, events.New(), 10)
	h := New(sessions, nil)

	r := h.HandleCommand(ActionVideoPlay, nil)
	if r.Success || r.Error != "VIDEO_UNAVAILABLE" {
		t.Fatalf("result = %+v, want VIDEO_UNAVAILABLE", r)
	}
}

func TestHandleCommand_SystemReset(t *testing.T) {
	h, sessions, video := newTestHandler(t)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	r := h.HandleCommand(ActionSystemReset, nil)
	if !r.Success {
		t.Fatalf("system:reset failed: %+v", r)
	}
	sess, ok := sessions.GetCurrent()
	if !ok || sess.Status != models.SessionEnded {
		t.Fatalf("expected ended session after reset, got %+v (ok=%v)", sess, ok)
	}
	if !video.clearCalled {
		t.Fatal("system:reset must also clear the video queue")
	}
}
