// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package offline implements the Offline Batch Handler: intake for
// scans a device recorded while disconnected and is now replaying in
// bulk. Each item is run through the same Transaction
// Engine a live scan would use, preserving its original client-side
// timestamp, so a replayed batch produces exactly the same
// accepted/duplicate/unknown outcome it would have produced live.
package offline

import (
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/metrics"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/txn"
)

// Emitter identifies the Offline Batch Handler as an event source.
const Emitter = "offline-handler"

// Domain event names emitted on Bus.
const (
	// EventQueueProcessed is broadcast to every GM once a batch has
	// finished processing, so dashboards can refresh without polling.
	EventQueueProcessed = "offline:queue:processed"
	// EventBatchAck is targeted at the single device that submitted
	// the batch, acknowledging receipt and per-item outcomes.
	EventBatchAck = "batch:ack"
)

// QueueProcessedPayload summarizes one processed batch for the GM
// room; it intentionally omits per-item detail the GMs don't need.
type QueueProcessedPayload struct {
	DeviceID  string `json:"deviceId"`
	BatchID   string `json:"batchId"`
	Processed int    `json:"processed"`
	Rejected  int    `json:"rejected"`
}

// BatchAckPayload is sent back to the submitting device only,
// carrying every resulting transaction so it can reconcile its local
// queue against what the server actually recorded.
type BatchAckPayload struct {
	DeviceID string               `json:"deviceId"`
	BatchID  string               `json:"batchId"`
	Results  []models.Transaction `json:"results"`
	Rejected int                  `json:"rejected"`
}

// ScanItem is one queued scan within a batch, carrying the original
// client-side timestamp it was recorded at. DeviceID is optional
// per-item; items without one inherit the batch-level device.
type ScanItem struct {
	TokenID    string            `json:"tokenId"`
	TeamID     string            `json:"teamId"`
	DeviceID   string            `json:"deviceId,omitempty"`
	DeviceType models.DeviceType `json:"deviceType"`
	Mode       models.ScanMode   `json:"mode"`
	Timestamp  time.Time         `json:"timestamp"`
}

// BatchRequest is the full payload of one offline replay, whether
// submitted via POST /api/scan/batch or an offline:queue websocket
// message. DeviceID names the submitting device (the batch:ack
// target); when absent it is inferred from the first item carrying
// one.
type BatchRequest struct {
	BatchID      string     `json:"batchId"`
	DeviceID     string     `json:"deviceId,omitempty"`
	Transactions []ScanItem `json:"transactions"`
}

// submitter resolves the device the batch:ack should target.
func (r BatchRequest) submitter() string {
	if r.DeviceID != "" {
		return r.DeviceID
	}
	for _, item := range r.Transactions {
		if item.DeviceID != "" {
			return item.DeviceID
		}
	}
	return ""
}

// BatchResultItem is one item's compact outcome within a BatchResult,
// per the POST /api/scan/batch response contract.
type BatchResultItem struct {
	Index         int    `json:"index"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// BatchResult is what the Offline Batch Handler returns to its caller
// (the HTTP handler or the wsrouter), and is also what gets cached
// under BatchID for idempotent replay:
// `{batchId, results:[{index, transactionId, status, error?}],
// alreadyProcessed}`.
type BatchResult struct {
	BatchID          string            `json:"batchId"`
	Results          []BatchResultItem `json:"results"`
	Processed        int               `json:"-"`
	Rejected         int               `json:"-"`
	AlreadyProcessed bool              `json:"alreadyProcessed"`
}

// Handler processes offline batches through the Transaction Engine.
type Handler struct {
	engine *txn.Engine
	bus    *events.Bus
	cache  *resultCache
	maxAge time.Duration
}

// New constructs an Offline Batch Handler. cacheSize and cacheTTL
// bound the batchId->result idempotency cache shared across repeated
// submissions of the same batch (e.g. a device that retries after a
// dropped ack); maxAge bounds how old a queued scan's original
// timestamp may be before it is rejected as stale rather than
// replayed. A zero cacheSize or cacheTTL falls back to the cache
// defaults; a zero maxAge turns the staleness check off.
func New(engine *txn.Engine, bus *events.Bus, cacheSize int, cacheTTL, maxAge time.Duration) *Handler {
	return &Handler{engine: engine, bus: bus, cache: newResultCache(cacheSize, cacheTTL), maxAge: maxAge}
}

// ProcessBatch replays every item in req through the Transaction
// Engine in order, emits batch:ack to the submitting device and
// offline:queue:processed to the GM room, and caches the result under
// req.BatchID so a retried submission returns the same outcome without
// reprocessing.
func (h *Handler) ProcessBatch(req BatchRequest) BatchResult {
	if req.BatchID != "" {
		if cached, ok := h.cache.get(req.BatchID); ok {
			cached.AlreadyProcessed = true
			metrics.RecordOfflineBatch("replayed")
			return cached
		}
	}

	now := time.Now().UTC()
	submitter := req.submitter()
	items := make([]BatchResultItem, 0, len(req.Transactions))
	fullTxs := make([]models.Transaction, 0, len(req.Transactions))
	rejected := 0

	for i, item := range req.Transactions {
		deviceID := item.DeviceID
		if deviceID == "" {
			deviceID = submitter
		}
		if h.maxAge > 0 && !item.Timestamp.IsZero() && now.Sub(item.Timestamp) > h.maxAge {
			rejected++
			tx := models.Transaction{
				TokenID:    item.TokenID,
				TeamID:     item.TeamID,
				DeviceID:   deviceID,
				DeviceType: item.DeviceType,
				Mode:       item.Mode,
				Status:     models.TxError,
				Timestamp:  item.Timestamp,
			}
			fullTxs = append(fullTxs, tx)
			items = append(items, BatchResultItem{Index: i, Status: string(models.TxError), Error: "scan timestamp too old"})
			continue
		}

		tx := h.engine.Submit(txn.ScanRequest{
			TokenID:    item.TokenID,
			TeamID:     item.TeamID,
			DeviceID:   deviceID,
			DeviceType: item.DeviceType,
			Mode:       item.Mode,
			Timestamp:  item.Timestamp,
		})
		fullTxs = append(fullTxs, tx)
		items = append(items, BatchResultItem{
			Index:         i,
			TransactionID: tx.ID,
			Status:        string(tx.Status),
			Error:         itemError(tx.Status),
		})
		if tx.Status != models.TxAccepted {
			rejected++
		}
	}

	result := BatchResult{
		BatchID:   req.BatchID,
		Results:   items,
		Processed: len(items),
		Rejected:  rejected,
	}

	if req.BatchID != "" {
		h.cache.add(req.BatchID, result)
	}
	if rejected > 0 {
		metrics.RecordOfflineBatch("partial")
	} else {
		metrics.RecordOfflineBatch("processed")
	}

	h.bus.Emit(Emitter, EventBatchAck, BatchAckPayload{
		DeviceID: submitter,
		BatchID:  req.BatchID,
		Results:  fullTxs,
		Rejected: rejected,
	})
	h.bus.Emit(Emitter, EventQueueProcessed, QueueProcessedPayload{
		DeviceID:  submitter,
		BatchID:   req.BatchID,
		Processed: result.Processed,
		Rejected:  rejected,
	})

	return result
}

// itemError maps a non-accepted transaction status to the short
// reason string surfaced in a batch item's optional error field.
func itemError(status models.TransactionStatus) string {
	switch status {
	case models.TxDuplicate:
		return "duplicate scan"
	case models.TxUnknown:
		return "unknown token"
	case models.TxError:
		return "rejected"
	default:
		return ""
	}
}
