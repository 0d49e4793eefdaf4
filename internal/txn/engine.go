// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package txn implements the Transaction Engine: the hot path that
// turns a raw scan into a Transaction with a status, applying the
// fixed total order duplicate-check -> token-lookup -> score ->
// persist -> group-bonus -> video-intake -> emit. Every
// mutating step runs inside the Session Manager's per-session lock,
// so two devices racing to scan the same token never both win.
package txn

import (
	"time"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/catalog"
	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/metrics"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/session"
)

// Emitter identifies the Transaction Engine as an event source.
const Emitter = "transaction-engine"

// Domain event names emitted on Bus.
const (
	EventAdded          = "transaction:added"
	EventScoreUpdated   = "score:updated"
	EventGroupCompleted = "group:completed"
)

// ScoreUpdatedPayload carries the affected team's updated score.
type ScoreUpdatedPayload struct {
	TeamID string            `json:"teamId"`
	Score  *models.TeamScore `json:"score"`
}

// GroupCompletedPayload announces a team finishing a token group.
type GroupCompletedPayload struct {
	TeamID      string `json:"teamId"`
	GroupName   string `json:"groupName"`
	BonusPoints int    `json:"bonusPoints"`
}

// VideoEnqueuer is the Video Queue's intake surface, as seen by the
// Transaction Engine. Defined here rather than
// imported from internal/video so the engine does not need to depend
// on VLC transport details - only the subset it actually calls.
type VideoEnqueuer interface {
	Enqueue(tokenID, filename string) error
}

// ScanRequest is the inbound shape for a single scan, whether it
// arrives via HTTP POST /api/scan, a websocket transaction:submit
// event, or one item of an offline batch.
type ScanRequest struct {
	TokenID    string
	TeamID     string
	DeviceID   string
	DeviceType models.DeviceType
	Mode       models.ScanMode
	// Timestamp overrides time.Now() when replaying an offline batch
	// item, which must preserve its original client-side timestamp.
	// Zero means "use now".
	Timestamp time.Time
}

// Engine applies ScanRequests against the current session.
type Engine struct {
	sessions *session.Manager
	catalog  *catalog.Catalog
	bus      *events.Bus
	video    VideoEnqueuer
}

// New constructs a Transaction Engine. video may be nil during
// startup before the Video Queue is wired in; video intake is then
// skipped silently (not fatal) rather than blocking scoring.
func New(sessions *session.Manager, cat *catalog.Catalog, bus *events.Bus, video VideoEnqueuer) *Engine {
	return &Engine{sessions: sessions, catalog: cat, bus: bus, video: video}
}

// SetVideoEnqueuer wires the Video Queue in after both have been
// constructed, breaking the natural New(txn) -> New(video) ordering
// cycle (the Video Queue in turn emits through the same bus the
// engine subscribes consumers to).
func (e *Engine) SetVideoEnqueuer(video VideoEnqueuer) {
	e.video = video
}

func (e *Engine) timestamp(req ScanRequest) time.Time {
	if req.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return req.Timestamp
}

func newTransactionID() string {
	return uuid.NewString()
}

// Submit runs req through the full scan algorithm and returns the
// resulting Transaction. It never returns a Go error for a rejected
// scan: duplicate/unknown/error are all represented as a Transaction
// with the corresponding status.
func (e *Engine) Submit(req ScanRequest) models.Transaction {
	// Step 1: session precondition.
	sess, ok := e.sessions.GetCurrent()
	if !ok || sess.Status != models.SessionActive {
		return models.Transaction{
			ID:         newTransactionID(),
			TokenID:    req.TokenID,
			TeamID:     req.TeamID,
			DeviceID:   req.DeviceID,
			DeviceType: req.DeviceType,
			Mode:       req.Mode,
			Status:     models.TxError,
			Points:     0,
			Timestamp:  e.timestamp(req),
		}
	}

	// Step 2: per-device duplicate check. This read races other
	// submitters, but the authoritative decision is made inside
	// AddTransaction under the Session Manager's lock below - a
	// transaction that loses the race there still gets dropped to
	// duplicate via the persisted ScannedTokensByDevice state, since
	// the Session Manager rejects it at the same append step. The
	// pre-check here only avoids catalog/scoring work for the common
	// case.
	if scanned, firstID := e.sessions.IsTokenScannedByDevice(req.DeviceID, req.TokenID); scanned {
		return e.finalize(models.Transaction{
			ID:                    newTransactionID(),
			TokenID:               req.TokenID,
			TeamID:                req.TeamID,
			DeviceID:              req.DeviceID,
			DeviceType:            req.DeviceType,
			Mode:                  req.Mode,
			Status:                models.TxDuplicate,
			Points:                0,
			Timestamp:             e.timestamp(req),
			OriginalTransactionID: firstID,
		})
	}

	// Step 3: token lookup.
	token, found := e.catalog.Get(req.TokenID)
	tx := models.Transaction{
		ID:         newTransactionID(),
		TokenID:    req.TokenID,
		TeamID:     req.TeamID,
		DeviceID:   req.DeviceID,
		DeviceType: req.DeviceType,
		Mode:       req.Mode,
		Timestamp:  e.timestamp(req),
	}
	if !found {
		tx.Status = models.TxUnknown
		tx.IsUnknown = true
		tx.Points = 0
		return e.finalize(tx)
	}

	tx.MemoryType = token.MemoryType
	tx.ValueRating = token.ValueRating
	tx.Group = token.Group

	// Steps 4-5: mode gating and scoring.
	if req.Mode == models.ModeDetective {
		tx.Points = 0
	} else {
		tx.Points = token.Value()
	}
	tx.Status = models.TxAccepted

	return e.finalize(tx, token)
}

// finalize performs step 6 (persist via the Session Manager, which
// also performs step 2's authoritative re-check and step 7's
// score/group update atomically under its lock), then 8 (video
// intake) and 9 (event emission) for accepted transactions only.
// token is present only when tx.Status == accepted. The Session
// Manager may downgrade tx.Status from accepted to duplicate during
// the re-check; finalize always uses its returned transaction as
// ground truth rather than the one passed in.
func (e *Engine) finalize(tx models.Transaction, token ...models.Token) models.Transaction {
	if tx.Status != models.TxAccepted {
		// Duplicate and unknown transactions are still persisted and
		// still broadcast (GMs see the duplicate/unknown scan happen)
		// - only the score/group events are withheld.
		_, finalTx, _, err := e.sessions.AddTransaction(tx)
		if err != nil {
			tx.Status = models.TxError
			tx.Points = 0
			return tx
		}
		tx = finalTx
		metrics.RecordTransaction(string(tx.Mode), string(tx.Status))
		e.bus.Emit(Emitter, EventAdded, tx)
		return tx
	}

	sess, finalTx, bonus, err := e.sessions.AddTransaction(tx)
	if err != nil {
		// Step 6 failure: do not treat as applied, no events.
		tx.Status = models.TxError
		tx.Points = 0
		metrics.RecordTransaction(string(tx.Mode), string(tx.Status))
		return tx
	}
	tx = finalTx
	if tx.Status != models.TxAccepted {
		// Lost the race to another scan of the same (device, token);
		// the Session Manager already recorded it as a duplicate.
		metrics.RecordTransaction(string(tx.Mode), string(tx.Status))
		e.bus.Emit(Emitter, EventAdded, tx)
		return tx
	}

	// Step 8: video intake, best-effort and non-blocking for scoring.
	if len(token) == 1 && token[0].MediaAssets != nil && token[0].MediaAssets.Video != "" && e.video != nil {
		_ = e.video.Enqueue(tx.TokenID, token[0].MediaAssets.Video)
	}

	// Step 9: emit events. transaction:added always; score:updated
	// always for the affected team; group:completed only if earned.
	metrics.RecordTransaction(string(tx.Mode), string(tx.Status))
	e.bus.Emit(Emitter, EventAdded, tx)
	if score, ok := sess.Scores[tx.TeamID]; ok {
		e.bus.Emit(Emitter, EventScoreUpdated, ScoreUpdatedPayload{TeamID: tx.TeamID, Score: score})
	}
	if bonus.GroupCompleted {
		metrics.RecordGroupCompletion()
		e.bus.Emit(Emitter, EventGroupCompleted, GroupCompletedPayload{
			TeamID:      tx.TeamID,
			GroupName:   bonus.GroupName,
			BonusPoints: bonus.BonusPoints,
		})
	}

	return tx
}
