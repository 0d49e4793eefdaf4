// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package video implements the Video Queue: a single-slot FIFO
// serializer for the shared VLC display. At most one item is ever
// "in flight" (loading/playing/paused); enqueue, skip, pause, resume,
// and clear all funnel through one mutex guarding the head transition.
// The VLC calls themselves are issued with that mutex released.
package video

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/logging"
	"github.com/maxepunk/aln-orchestrator/internal/metrics"
	"github.com/maxepunk/aln-orchestrator/internal/models"
)

// Emitter identifies the Video Queue as an event source.
const Emitter = "video-queue"

// Domain event names.
const (
	EventQueued   = "video:queued"
	EventLoading  = "video:loading"
	EventProgress = "video:progress"
	EventStatus   = "video:status"
)

// ProgressPayload is emitted roughly once a second while an item
// plays.
type ProgressPayload struct {
	TokenID  string   `json:"tokenId"`
	Progress float64  `json:"progress"`
	Position float64  `json:"position"`
	Duration *float64 `json:"duration,omitempty"`
}

// StatusPayload announces a state transition or error for the head
// item, broadcast to the gm room so GMs see playback problems without
// polling.
type StatusPayload struct {
	Item  models.VideoQueueItem `json:"item"`
	Error string                `json:"error,omitempty"`
}

// vlcController is the subset of VLCClient the queue drives; an
// interface so tests can substitute a fake without an HTTP server.
type vlcController interface {
	Play(ctx context.Context, filename string) (*VLCStatus, error)
	Pause(ctx context.Context) (*VLCStatus, error)
	Resume(ctx context.Context) (*VLCStatus, error)
	Stop(ctx context.Context) (*VLCStatus, error)
	Status(ctx context.Context) (*VLCStatus, error)
	BreakerState() string
}

// Queue is the FIFO video serializer. The zero value is not usable;
// construct with New.
type Queue struct {
	mu             sync.Mutex
	vlc            vlcController
	bus            *events.Bus
	commandTimeout time.Duration
	onChange       func(items []models.VideoQueueItem)

	pending []models.VideoQueueItem
	current *models.VideoQueueItem
}

// New constructs a Video Queue driving vlc, emitting domain events on
// bus. commandTimeout bounds each individual VLC control call and
// defaults to 5s.
func New(vlc vlcController, bus *events.Bus, commandTimeout time.Duration) *Queue {
	if commandTimeout <= 0 {
		commandTimeout = 5 * time.Second
	}
	return &Queue{vlc: vlc, bus: bus, commandTimeout: commandTimeout}
}

// EnqueueResult reports the position assigned to a newly queued item.
type EnqueueResult struct {
	Position int
}

// SetOnChange registers a callback invoked with a full item snapshot
// after every queue mutation. The Session Manager uses it to mirror
// the queue into the persisted Session document, so a restart can
// rebuild in-flight playback via Restore. Called with the queue lock
// released; the callback may block on I/O.
func (q *Queue) SetOnChange(fn func(items []models.VideoQueueItem)) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Items returns a snapshot of every live item, head first.
func (q *Queue) Items() []models.VideoQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.itemsLocked()
}

func (q *Queue) itemsLocked() []models.VideoQueueItem {
	items := make([]models.VideoQueueItem, 0, len(q.pending)+1)
	if q.current != nil {
		items = append(items, *q.current)
	}
	return append(items, q.pending...)
}

func (q *Queue) notifyChange() {
	q.mu.Lock()
	fn := q.onChange
	items := q.itemsLocked()
	q.mu.Unlock()
	if fn != nil {
		fn(items)
	}
}

// Restore reloads queue state persisted by a previous process run.
// Items that had already completed or errored are dropped; everything
// else - including an item that was mid-playback when the process
// died - goes back to queued, in order, and the head starts playing
// again from the top. VLC cannot seek-resume a lost session, so a
// replayed head is the closest the venue gets to picking up where the
// crash left off. Call once at startup, before the poller runs.
func (q *Queue) Restore(items []models.VideoQueueItem) {
	q.mu.Lock()
	for _, item := range items {
		switch item.State {
		case models.VideoCompleted, models.VideoError:
			continue
		}
		item.State = models.VideoQueued
		item.StartedAt = nil
		item.ExpectedEndTime = nil
		item.Error = ""
		if q.current == nil {
			restored := item
			q.current = &restored
		} else {
			q.pending = append(q.pending, item)
		}
	}
	hasHead := q.current != nil
	q.mu.Unlock()

	if hasHead {
		metrics.SetVideoQueueLength(q.Snapshot().QueueLength)
		q.startHead()
	}
}

// Enqueue appends a new item for tokenID/filename. If the queue was
// empty, the new item immediately transitions to loading and VLC.Play
// is issued.
func (q *Queue) Enqueue(tokenID, filename string) error {
	q.mu.Lock()

	item := models.VideoQueueItem{
		ID:       uuid.NewString(),
		TokenID:  tokenID,
		Filename: filename,
		State:    models.VideoQueued,
		QueuedAt: time.Now().UTC(),
	}

	wasEmpty := q.current == nil
	if wasEmpty {
		q.current = &item
	} else {
		q.pending = append(q.pending, item)
	}
	q.mu.Unlock()

	metrics.SetVideoQueueLength(q.Snapshot().QueueLength)
	q.bus.Emit(Emitter, EventQueued, item)
	q.notifyChange()
	if wasEmpty {
		q.startHead()
	}
	return nil
}

// startHead transitions the current head into loading and issues
// VLC.Play. Called with the lock released; it re-acquires it only
// long enough to read/update q.current, so a slow VLC call never
// blocks other queue operations (position queries, skip/clear).
func (q *Queue) startHead() {
	q.mu.Lock()
	if q.current == nil {
		q.mu.Unlock()
		return
	}
	q.current.State = models.VideoLoading
	item := *q.current
	q.mu.Unlock()

	q.bus.Emit(Emitter, EventLoading, item)
	q.notifyChange()

	ctx, cancel := context.WithTimeout(context.Background(), q.commandTimeout)
	defer cancel()
	status, err := q.vlc.Play(ctx, item.Filename)

	q.mu.Lock()
	if q.current == nil || q.current.ID != item.ID {
		q.mu.Unlock()
		return
	}
	if err != nil {
		q.current.State = models.VideoError
		q.current.Error = err.Error()
		failed := *q.current
		q.mu.Unlock()
		logging.Error().Err(err).Str("tokenId", item.TokenID).Msg("vlc play failed")
		q.bus.Emit(Emitter, EventStatus, StatusPayload{Item: failed, Error: err.Error()})
		q.notifyChange()
		q.advance()
		return
	}

	now := time.Now().UTC()
	q.current.State = models.VideoPlaying
	q.current.StartedAt = &now
	if status != nil && status.Length > 0 {
		d := float64(status.Length)
		q.current.Duration = &d
		end := now.Add(time.Duration(status.Length) * time.Second)
		q.current.ExpectedEndTime = &end
	}
	playing := *q.current
	q.mu.Unlock()

	q.bus.Emit(Emitter, EventStatus, StatusPayload{Item: playing})
	q.notifyChange()
}

// advance pops the head (already completed/errored) and, if another
// item is queued, promotes it and starts it.
func (q *Queue) advance() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.current = nil
		q.mu.Unlock()
		q.notifyChange()
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.current = &next
	q.mu.Unlock()

	metrics.SetVideoQueueLength(q.Snapshot().QueueLength)
	q.startHead()
}

// OnVLCStatus reconciles the head item against a freshly polled VLC
// status. The ~1s poll loop belongs to the caller, not this package.
func (q *Queue) OnVLCStatus(status VLCStatus) {
	q.mu.Lock()
	if q.current == nil || q.current.State != models.VideoPlaying {
		q.mu.Unlock()
		return
	}
	item := q.current
	pastExpectedEnd := item.ExpectedEndTime != nil && time.Now().UTC().After(*item.ExpectedEndTime)
	if status.State != "stopped" && !pastExpectedEnd {
		progress := ProgressPayload{TokenID: item.TokenID, Position: status.Position, Duration: item.Duration}
		if item.Duration != nil && *item.Duration > 0 {
			progress.Progress = status.Position / *item.Duration
		}
		q.mu.Unlock()
		q.bus.Emit(Emitter, EventProgress, progress)
		return
	}

	item.State = models.VideoCompleted
	completed := *item
	q.mu.Unlock()

	q.bus.Emit(Emitter, EventStatus, StatusPayload{Item: completed})
	q.notifyChange()
	q.advance()
}

// Skip stops and discards the current head, advancing to the next
// queued item.
func (q *Queue) Skip() error {
	q.mu.Lock()
	if q.current == nil {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.commandTimeout)
	defer cancel()
	if _, err := q.vlc.Stop(ctx); err != nil {
		logging.Warn().Err(err).Msg("vlc stop failed during skip")
	}
	q.advance()
	return nil
}

// Pause pauses the currently playing item.
func (q *Queue) Pause() error {
	q.mu.Lock()
	if q.current == nil || q.current.State != models.VideoPlaying {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.commandTimeout)
	defer cancel()
	if _, err := q.vlc.Pause(ctx); err != nil {
		return err
	}

	q.mu.Lock()
	if q.current != nil {
		q.current.State = models.VideoPaused
	}
	q.mu.Unlock()
	q.notifyChange()
	return nil
}

// Resume resumes a paused item.
func (q *Queue) Resume() error {
	q.mu.Lock()
	if q.current == nil || q.current.State != models.VideoPaused {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.commandTimeout)
	defer cancel()
	if _, err := q.vlc.Resume(ctx); err != nil {
		return err
	}

	q.mu.Lock()
	if q.current != nil {
		q.current.State = models.VideoPlaying
	}
	q.mu.Unlock()
	q.notifyChange()
	return nil
}

// Clear stops current playback and empties every queued item.
func (q *Queue) Clear() error {
	q.mu.Lock()
	hadCurrent := q.current != nil
	q.current = nil
	q.pending = nil
	q.mu.Unlock()

	metrics.SetVideoQueueLength(0)
	q.notifyChange()
	if !hadCurrent {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.commandTimeout)
	defer cancel()
	if _, err := q.vlc.Stop(ctx); err != nil {
		logging.Warn().Err(err).Msg("vlc stop failed during clear")
	}
	return nil
}

// Snapshot returns the current VideoStatus for the State Projector.
// An empty Status string means the queue is idle (no item has ever
// played, or the last one finished and nothing followed) - none of
// the VideoState values describe "nothing queued", so this is
// deliberately left unset rather than overloading "completed".
func (q *Queue) Snapshot() models.VideoStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := models.VideoStatus{
		QueueLength: len(q.pending),
	}
	if q.current == nil {
		return status
	}
	status.Status = q.current.State
	status.TokenID = q.current.TokenID
	status.Duration = q.current.Duration
	status.ExpectedEndTime = q.current.ExpectedEndTime
	status.Error = q.current.Error
	status.QueueLength = len(q.pending) + 1
	return status
}

// VLCHealth reports the VLC circuit breaker state for the State
// Projector's systemStatus.vlc field.
func (q *Queue) VLCHealth() string {
	return q.vlc.BreakerState()
}

// PollOnce fetches current VLC status and reconciles the queue. The
// caller (typically a suture service ticking every ~1s) owns the
// polling loop; this method is the single reconciliation step.
func (q *Queue) PollOnce(ctx context.Context) {
	q.mu.Lock()
	playing := q.current != nil && q.current.State == models.VideoPlaying
	q.mu.Unlock()
	if !playing {
		return
	}

	status, err := q.vlc.Status(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("vlc status poll failed")
		return
	}
	q.OnVLCStatus(*status)
}
