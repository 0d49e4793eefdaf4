// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package services

import (
	"context"
	"time"
)

// Poller interface matches *video.Queue's PollOnce method.
//
// Satisfied by *video.Queue from internal/video/queue.go.
type Poller interface {
	PollOnce(ctx context.Context)
}

// VideoPollerService repeatedly calls PollOnce on a fixed interval,
// reconciling the Video Queue's idea of playback progress against
// VLC's actual status, roughly once per second.
//
//	queue := video.New(vlcClient, bus, cfg)
//	svc := services.NewVideoPollerService(queue, time.Second)
//	tree.AddDataService(svc)
type VideoPollerService struct {
	poller   Poller
	interval time.Duration
	name     string
}

// NewVideoPollerService creates a new video poller service wrapper.
// interval defaults to 1 second when non-positive.
func NewVideoPollerService(poller Poller, interval time.Duration) *VideoPollerService {
	if interval <= 0 {
		interval = time.Second
	}
	return &VideoPollerService{
		poller:   poller,
		interval: interval,
		name:     "video-poller",
	}
}

// Serve implements suture.Service.
func (v *VideoPollerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			v.poller.PollOnce(ctx)
		}
	}
}

// String implements fmt.Stringer for logging.
func (v *VideoPollerService) String() string {
	return v.name
}
