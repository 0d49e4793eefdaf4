// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type mockPoller struct {
	pollCount atomic.Int32
}

func (m *mockPoller) PollOnce(ctx context.Context) {
	m.pollCount.Add(1)
}

func TestVideoPollerService_Interface(t *testing.T) {
	var _ suture.Service = (*VideoPollerService)(nil)
}

func TestNewVideoPollerService_DefaultInterval(t *testing.T) {
	poller := &mockPoller{}
	svc := NewVideoPollerService(poller, 0)
	if svc.interval != time.Second {
		t.Errorf("expected default interval 1s, got %v", svc.interval)
	}

	svc = NewVideoPollerService(poller, -5*time.Second)
	if svc.interval != time.Second {
		t.Errorf("expected default interval 1s for negative input, got %v", svc.interval)
	}
}

func TestVideoPollerService_Serve(t *testing.T) {
	poller := &mockPoller{}
	svc := NewVideoPollerService(poller, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}

	if poller.pollCount.Load() < 2 {
		t.Errorf("expected at least 2 polls, got %d", poller.pollCount.Load())
	}
}

func TestVideoPollerService_String(t *testing.T) {
	svc := NewVideoPollerService(&mockPoller{}, time.Second)
	if svc.String() != "video-poller" {
		t.Errorf("expected 'video-poller', got %q", svc.String())
	}
}
