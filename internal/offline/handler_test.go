// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package offline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/catalog"
	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/store"
	"github.com/maxepunk/aln-orchestrator/internal/txn"
)

const sampleCatalog = `{
	"tok_plain": {"memoryType": "Personal", "valueRating": 1},
	"tok_high": {"memoryType": "Business", "valueRating": 2}
}`

func newTestHandler(t *testing.T, maxAge time.Duration) (*Handler, *session.Manager, *events.Bus) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	bus := events.New()
	sessions := session.NewManager(st, bus, 10)

	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("catalog.Load() error: %v", err)
	}

	engine := txn.New(sessions, cat, bus, nil)
	return New(engine, bus, 100, time.Hour, maxAge), sessions, bus
}

func TestProcessBatch_PreservesOriginalTimestampsAndStatuses(t *testing.T) {
	h, sessions, _ := newTestHandler(t, 0)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	original := time.Now().Add(-30 * time.Minute).UTC()
	req := BatchRequest{
		BatchID:  "batch-1",
		DeviceID: "gm01",
		Transactions: []ScanItem{
			{TokenID: "tok_plain", TeamID: "red", Mode: models.ModeBlackmarket, Timestamp: original},
			{TokenID: "tok_plain", TeamID: "red", Mode: models.ModeBlackmarket, Timestamp: original.Add(time.Second)},
			{TokenID: "tok_ghost", TeamID: "red", Mode: models.ModeBlackmarket, Timestamp: original},
		},
	}

	result := h.ProcessBatch(req)
	if result.Processed != 3 {
		t.Fatalf("Processed = %d, want 3", result.Processed)
	}
	if result.Rejected != 2 {
		t.Fatalf("Rejected = %d, want 2 (one duplicate, one unknown)", result.Rejected)
	}
	if result.Results[0].Status != string(models.TxAccepted) {
		t.Fatalf("Results[0].Status = %s, want accepted", result.Results[0].Status)
	}
	if result.Results[0].TransactionID == "" {
		t.Fatal("Results[0].TransactionID should be set for an accepted scan")
	}
	if result.Results[1].Status != string(models.TxDuplicate) {
		t.Fatalf("Results[1].Status = %s, want duplicate", result.Results[1].Status)
	}
	if result.Results[1].Error == "" {
		t.Fatal("Results[1].Error should explain the duplicate rejection")
	}
	if result.Results[2].Status != string(models.TxUnknown) {
		t.Fatalf("Results[2].Status = %s, want unknown", result.Results[2].Status)
	}
	for i, item := range result.Results {
		if item.Index != i {
			t.Errorf("Results[%d].Index = %d, want %d", i, item.Index, i)
		}
	}
}

func TestProcessBatch_RejectsStaleItems(t *testing.T) {
	h, sessions, _ := newTestHandler(t, time.Minute)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	stale := time.Now().Add(-time.Hour).UTC()
	req := BatchRequest{
		BatchID:  "batch-stale",
		DeviceID: "gm01",
		Transactions: []ScanItem{
			{TokenID: "tok_plain", TeamID: "red", Mode: models.ModeBlackmarket, Timestamp: stale},
		},
	}

	result := h.ProcessBatch(req)
	if result.Rejected != 1 {
		t.Fatalf("Rejected = %d, want 1", result.Rejected)
	}
	if result.Results[0].Status != string(models.TxError) {
		t.Fatalf("Results[0].Status = %s, want error", result.Results[0].Status)
	}
	if result.Results[0].Error != "scan timestamp too old" {
		t.Fatalf("Results[0].Error = %q, want %q", result.Results[0].Error, "scan timestamp too old")
	}
}

func TestProcessBatch_IsIdempotentByBatchID(t *testing.T) {
	h, sessions, _ := newTestHandler(t, 0)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	req := BatchRequest{
		BatchID:  "batch-retry",
		DeviceID: "gm01",
		Transactions: []ScanItem{
			{TokenID: "tok_plain", TeamID: "red", Mode: models.ModeBlackmarket, Timestamp: time.Now().UTC()},
		},
	}

	first := h.ProcessBatch(req)
	if first.AlreadyProcessed {
		t.Fatal("first submission should not be marked already processed")
	}

	second := h.ProcessBatch(req)
	if !second.AlreadyProcessed {
		t.Fatal("retried submission should be marked already processed")
	}
	if second.Results[0].TransactionID != first.Results[0].TransactionID {
		t.Fatalf("retried batch produced a different transaction id: %s vs %s", second.Results[0].TransactionID, first.Results[0].TransactionID)
	}

	sess, _ := sessions.GetCurrent()
	if len(sess.Transactions) != 1 {
		t.Fatalf("len(Transactions) = %d, want 1 (retry must not reprocess)", len(sess.Transactions))
	}
}

func TestProcessBatch_EmitsAckAndQueueProcessed(t *testing.T) {
	h, sessions, bus := newTestHandler(t, 0)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	var ack BatchAckPayload
	var processed QueueProcessedPayload
	if _, err := bus.Subscribe(Emitter, EventBatchAck, "test", func(p interface{}) {
		ack = p.(BatchAckPayload)
	}); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if _, err := bus.Subscribe(Emitter, EventQueueProcessed, "test", func(p interface{}) {
		processed = p.(QueueProcessedPayload)
	}); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	h.ProcessBatch(BatchRequest{
		BatchID:  "batch-events",
		DeviceID: "gm01",
		Transactions: []ScanItem{
			{TokenID: "tok_plain", TeamID: "red", Mode: models.ModeBlackmarket, Timestamp: time.Now().UTC()},
		},
	})

	if ack.DeviceID != "gm01" || ack.BatchID != "batch-events" {
		t.Fatalf("ack = %+v", ack)
	}
	if processed.DeviceID != "gm01" || processed.Processed != 1 {
		t.Fatalf("processed = %+v", processed)
	}
}

func TestProcessBatch_PerItemDeviceIDs(t *testing.T) {
	h, sessions, bus := newTestHandler(t, 0)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	var ack BatchAckPayload
	if _, err := bus.Subscribe(Emitter, EventBatchAck, "test", func(p interface{}) {
		ack = p.(BatchAckPayload)
	}); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	// No batch-level deviceId: items carry their own, and the ack goes
	// to the first device named in the batch.
	result := h.ProcessBatch(BatchRequest{
		BatchID: "batch-per-item",
		Transactions: []ScanItem{
			{TokenID: "tok_plain", TeamID: "red", DeviceID: "p1", Mode: models.ModeBlackmarket, Timestamp: time.Now().UTC()},
			{TokenID: "tok_plain", TeamID: "red", DeviceID: "p2", Mode: models.ModeBlackmarket, Timestamp: time.Now().UTC()},
		},
	})

	// Distinct devices: the per-device dedup window means both scans of
	// the same token are accepted.
	if result.Results[0].Status != string(models.TxAccepted) || result.Results[1].Status != string(models.TxAccepted) {
		t.Fatalf("statuses = %s, %s; want both accepted across distinct devices", result.Results[0].Status, result.Results[1].Status)
	}
	if ack.DeviceID != "p1" {
		t.Fatalf("ack.DeviceID = %q, want first item's device p1", ack.DeviceID)
	}

	sess, _ := sessions.GetCurrent()
	if len(sess.ScannedTokensByDevice["p1"]) != 1 || len(sess.ScannedTokensByDevice["p2"]) != 1 {
		t.Fatalf("scannedTokensByDevice = %+v, want one token per device", sess.ScannedTokensByDevice)
	}
}

func TestProcessBatch_EmptyBatchIsCached(t *testing.T) {
	h, sessions, _ := newTestHandler(t, 0)
	if _, err := sessions.CreateSession("Night One", []string{"red"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	first := h.ProcessBatch(BatchRequest{BatchID: "batch-empty", DeviceID: "gm01"})
	if first.Processed != 0 || len(first.Results) != 0 {
		t.Fatalf("empty batch result = %+v, want zero items", first)
	}

	second := h.ProcessBatch(BatchRequest{BatchID: "batch-empty", DeviceID: "gm01"})
	if !second.AlreadyProcessed {
		t.Fatal("empty batch must still be cached under its batchId")
	}
}
