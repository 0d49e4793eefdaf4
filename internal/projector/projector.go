// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package projector implements the State Projector: a pure function
// over the current Session, Video Queue and VLC health that produces
// the read-side GameState. GameState is never
// persisted - it is recomputed on demand for sync:full snapshots and
// the initial HTTP /api/state response.
package projector

import (
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/models"
)

// maxRecentTransactions caps the GameState.RecentTransactions slice:
// the last 100 transactions, ordered newest-first.
const maxRecentTransactions = 100

// VideoQueue is the subset of the Video Queue the projector reads.
type VideoQueue interface {
	Snapshot() models.VideoStatus
	VLCHealth() string
}

// Project builds a GameState snapshot from sess (already a caller-
// owned Session, e.g. Manager.GetCurrent()'s Clone()) and the current
// video queue. sess may be nil if no session has ever been created.
func Project(sess *models.Session, video VideoQueue) models.GameState {
	state := models.GameState{
		RecentTransactions: []models.Transaction{},
		Scores:             map[string]*models.TeamScore{},
		Devices:            map[string]*models.DeviceConnection{},
		LastUpdate:         time.Now().UTC(),
		SystemStatus:       models.SystemStatus{Orchestrator: "online"},
	}

	if video != nil {
		state.VideoStatus = video.Snapshot()
		state.SystemStatus.VLC = video.VLCHealth()
	}

	if sess == nil {
		return state
	}

	state.SessionID = sess.ID
	state.Teams = sess.Teams
	state.Scores = sess.Scores
	state.Devices = sess.ConnectedDevices
	state.RecentTransactions = recentTransactions(sess.Transactions)
	return state
}

// recentTransactions returns up to the last 100 transactions, newest
// first, without mutating the caller's slice.
func recentTransactions(txs []models.Transaction) []models.Transaction {
	n := len(txs)
	if n == 0 {
		return []models.Transaction{}
	}
	limit := n
	if limit > maxRecentTransactions {
		limit = maxRecentTransactions
	}
	out := make([]models.Transaction, limit)
	for i := 0; i < limit; i++ {
		out[i] = txs[n-1-i]
	}
	return out
}
