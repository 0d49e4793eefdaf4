// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package session implements the Session Manager: the single holder
// of the authoritative active Session record. Every mutation goes
// through a Manager method, which applies the change under a mutex,
// persists the result, and only then emits a domain event - so a
// persistence failure never produces an observable event for a
// mutation that didn't actually stick.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/events"
	"github.com/maxepunk/aln-orchestrator/internal/metrics"
	"github.com/maxepunk/aln-orchestrator/internal/models"
	"github.com/maxepunk/aln-orchestrator/internal/store"
)

// Emitter identifies the Session Manager as an event source on the bus.
const Emitter = "session-manager"

// Domain event names emitted on Bus.
const (
	EventCreated            = "session:created"
	EventUpdated            = "session:updated"
	EventEnded              = "session:ended"
	EventDeviceUpdated      = "device:updated"
	EventDeviceDisconnected = "device:disconnected"
	EventScoresReset        = "scores:reset"
)

var (
	// ErrConcurrentSession is returned by CreateSession when a
	// session is already active or paused.
	ErrConcurrentSession = errors.New("session: a session is already active or paused")
	// ErrNoActiveSession is returned by mutations that require a
	// live (active or paused) session and find none.
	ErrNoActiveSession = errors.New("session: no active session")
	// ErrSessionNotFound is returned when an operation names a
	// session ID that does not match the current session.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrTransactionNotFound is returned by DeleteTransaction for an
	// unknown transaction ID.
	ErrTransactionNotFound = errors.New("session: transaction not found")
	// ErrMaxDevices is returned by AddDevice when registering a new
	// device would exceed the configured per-session cap.
	ErrMaxDevices = errors.New("session: device limit reached")
)

// DeviceUpdatedPayload is the event payload for device:updated.
type DeviceUpdatedPayload struct {
	Device *models.DeviceConnection
	IsNew  bool
}

// DeviceDisconnectedPayload is the event payload for device:disconnected.
type DeviceDisconnectedPayload struct {
	DeviceID string
	Reason   string
}

// currentPointer is the small document stored under "session:current"
// naming which session, if any, is presently active or paused.
type currentPointer struct {
	SessionID string `json:"sessionId"`
}

// Manager owns the single active Session and is the only component
// permitted to mutate it.
type Manager struct {
	mu         sync.Mutex
	store      *store.Store
	bus        *events.Bus
	maxDevices int
	current    *models.Session
}

// NewManager constructs a Session Manager backed by st for
// persistence and bus for domain event emission.
func NewManager(st *store.Store, bus *events.Bus, maxDevices int) *Manager {
	return &Manager{store: st, bus: bus, maxDevices: maxDevices}
}

// LoadCurrent restores the active/paused session (if any) from the
// Persistence Store at startup, rebuilding its derived in-memory
// state (scanned-token dedup sets, team score group tracking) from
// the transaction log.
func (m *Manager) LoadCurrent() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ptr currentPointer
	ok, err := m.store.Load("session:current", &ptr)
	if err != nil {
		return fmt.Errorf("session: load current pointer: %w", err)
	}
	if !ok || ptr.SessionID == "" {
		return nil
	}

	var sess models.Session
	ok, err = m.store.Load("session:"+ptr.SessionID, &sess)
	if err != nil {
		return fmt.Errorf("session: load session %s: %w", ptr.SessionID, err)
	}
	if !ok {
		return nil
	}
	sess.RebuildScannedTokens()
	sess.RebuildScores()
	for _, dev := range sess.ConnectedDevices {
		dev.SocketID = ""
	}
	m.current = &sess
	return nil
}

func (m *Manager) persistLocked() error {
	if m.current == nil {
		return nil
	}
	if err := m.store.Save("session:"+m.current.ID, m.current); err != nil {
		return fmt.Errorf("session: persist %s: %w", m.current.ID, err)
	}
	ptr := currentPointer{}
	if m.current.Status == models.SessionActive || m.current.Status == models.SessionPaused {
		ptr.SessionID = m.current.ID
	}
	if err := m.store.Save("session:current", ptr); err != nil {
		return fmt.Errorf("session: persist current pointer: %w", err)
	}
	return nil
}

// CreateSession starts a new Session. Fails with ErrConcurrentSession
// if a session is already active or paused.
func (m *Manager) CreateSession(name string, teams []string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && (m.current.Status == models.SessionActive || m.current.Status == models.SessionPaused) {
		return nil, ErrConcurrentSession
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:                    uuid.NewString(),
		Name:                  name,
		StartTime:             now,
		Status:                models.SessionActive,
		Teams:                 append([]string(nil), teams...),
		Transactions:          []models.Transaction{},
		Scores:                map[string]*models.TeamScore{},
		ConnectedDevices:      map[string]*models.DeviceConnection{},
		VideoQueue:            []models.VideoQueueItem{},
		ScannedTokensByDevice: map[string]map[string]bool{},
		Metadata:              map[string]interface{}{},
	}
	for _, team := range sess.Teams {
		sess.Scores[team] = models.NewTeamScore(team)
	}

	m.current = sess
	if err := m.persistLocked(); err != nil {
		m.current = nil
		return nil, err
	}
	metrics.SetSessionActive(true)
	snapshot := m.current.Clone()
	m.bus.Emit(Emitter, EventCreated, snapshot)
	return snapshot, nil
}

// GetCurrent returns a deep copy of the current session, if any.
func (m *Manager) GetCurrent() (*models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false
	}
	return m.current.Clone(), true
}

// requireLiveLocked returns ErrNoActiveSession unless the current
// session exists and has not ended. Caller must hold m.mu.
func (m *Manager) requireLiveLocked() error {
	if m.current == nil || m.current.Status == models.SessionEnded {
		return ErrNoActiveSession
	}
	return nil
}

// AddTransaction appends tx to the current session, updates the
// per-device dedup set (if accepted) and the affected team's score,
// persists, and emits session:updated (the Transaction Engine emits
// transaction:added / score:updated / group:completed from the
// returned values). Scoring math is delegated to TeamScore so replay
// is deterministic. tx.Status may be downgraded from accepted to
// duplicate here, under the lock, if another transaction for the same
// (device, token) was appended first - this is the one authoritative
// decision point for that race, so the returned Transaction (not the
// caller's original) is the one callers must treat as ground truth.
// Returns the finalized transaction, the resulting session snapshot,
// and the group-bonus outcome, if any.
func (m *Manager) AddTransaction(tx models.Transaction) (*models.Session, models.Transaction, models.GroupBonusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLiveLocked(); err != nil {
		return nil, tx, models.GroupBonusResult{}, err
	}

	sess := m.current

	// Authoritative duplicate re-check:
	// the Transaction Engine's own check races other submitters, so
	// the final word on "was this (device, token) already accepted"
	// belongs to the one place that holds the lock across both the
	// check and the append - here. A transaction that loses the race
	// is downgraded to duplicate before it ever reaches the log.
	if tx.Status == models.TxAccepted {
		if scanned, firstID := sess.IsTokenScannedByDevice(tx.DeviceID, tx.TokenID); scanned {
			tx.Status = models.TxDuplicate
			tx.Points = 0
			tx.OriginalTransactionID = firstID
		}
	}

	sess.Transactions = append(sess.Transactions, tx)

	var bonus models.GroupBonusResult
	if tx.Status == models.TxAccepted {
		if sess.ScannedTokensByDevice[tx.DeviceID] == nil {
			sess.ScannedTokensByDevice[tx.DeviceID] = map[string]bool{}
		}
		sess.ScannedTokensByDevice[tx.DeviceID][tx.TokenID] = true

		score, ok := sess.Scores[tx.TeamID]
		if !ok {
			score = models.NewTeamScore(tx.TeamID)
			sess.Scores[tx.TeamID] = score
		}
		bonus = score.ApplyTransaction(tx)
	}

	if err := m.persistLocked(); err != nil {
		// Roll back the in-memory append; the caller must not treat
		// this transaction as applied.
		sess.Transactions = sess.Transactions[:len(sess.Transactions)-1]
		return nil, tx, models.GroupBonusResult{}, fmt.Errorf("session: persist transaction: %w", err)
	}

	snapshot := sess.Clone()
	m.bus.Emit(Emitter, EventUpdated, snapshot)
	return snapshot, tx, bonus, nil
}

// IsTokenScannedByDevice reports whether the current session already
// has an accepted transaction for (deviceID, tokenID), and the id of
// the transaction that first claimed it.
func (m *Manager) IsTokenScannedByDevice(deviceID, tokenID string) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return false, ""
	}
	return m.current.IsTokenScannedByDevice(deviceID, tokenID)
}

// ScannedTokensForDevice returns the sorted set of token IDs the
// device has an accepted scan for in the current session, used for
// the sync:full reconnection payload.
func (m *Manager) ScannedTokensForDevice(deviceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	seen := m.current.ScannedTokensByDevice[deviceID]
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// UpdateVideoQueue mirrors the Video Queue's live items into the
// session document so they survive a process restart. The queue's
// own events already reach GMs through the broadcast path, so this
// persists silently rather than emitting session:updated for every
// playback tick.
func (m *Manager) UpdateVideoQueue(items []models.VideoQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Status == models.SessionEnded {
		return nil
	}
	m.current.VideoQueue = append([]models.VideoQueueItem(nil), items...)
	return m.persistLocked()
}

// EndSession sets status=ended, stamps EndTime, persists, and emits
// session:ended. reason is stored in Metadata for observability.
func (m *Manager) EndSession(reason string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireLiveLocked(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m.current.Status = models.SessionEnded
	m.current.EndTime = &now
	if reason != "" {
		if m.current.Metadata == nil {
			m.current.Metadata = map[string]interface{}{}
		}
		m.current.Metadata["endReason"] = reason
	}
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	metrics.SetSessionActive(false)
	snapshot := m.current.Clone()
	m.bus.Emit(Emitter, EventEnded, snapshot)
	return snapshot, nil
}

// PauseSession sets status=paused.
func (m *Manager) PauseSession() (*models.Session, error) {
	return m.setStatus(models.SessionPaused)
}

// ResumeSession sets status=active.
func (m *Manager) ResumeSession() (*models.Session, error) {
	return m.setStatus(models.SessionActive)
}

func (m *Manager) setStatus(status models.SessionStatus) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireLiveLocked(); err != nil {
		return nil, err
	}
	m.current.Status = status
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	metrics.SetSessionActive(status == models.SessionActive)
	snapshot := m.current.Clone()
	m.bus.Emit(Emitter, EventUpdated, snapshot)
	return snapshot, nil
}

// AdjustScore applies a manual admin correction to a team's score.
func (m *Manager) AdjustScore(teamID string, delta int, reason string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireLiveLocked(); err != nil {
		return nil, err
	}
	score, ok := m.current.Scores[teamID]
	if !ok {
		score = models.NewTeamScore(teamID)
		m.current.Scores[teamID] = score
	}
	score.BonusPoints += delta
	score.Recompute()
	score.LastUpdate = time.Now().UTC()
	score.AdminAdjustments = append(score.AdminAdjustments, models.AdminAdjustment{
		Delta:     delta,
		Reason:    reason,
		Timestamp: score.LastUpdate,
	})
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	snapshot := m.current.Clone()
	m.bus.Emit(Emitter, EventUpdated, snapshot)
	return snapshot, nil
}

// DeleteTransaction removes a transaction by id and recomputes every
// team's score from the remaining log.
func (m *Manager) DeleteTransaction(transactionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireLiveLocked(); err != nil {
		return nil, err
	}
	idx := -1
	for i, tx := range m.current.Transactions {
		if tx.ID == transactionID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrTransactionNotFound
	}
	m.current.Transactions = append(m.current.Transactions[:idx], m.current.Transactions[idx+1:]...)
	m.current.RebuildScannedTokens()
	m.current.RebuildScores()
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	snapshot := m.current.Clone()
	m.bus.Emit(Emitter, EventUpdated, snapshot)
	return snapshot, nil
}

// InjectTransaction appends a server-authored transaction, bypassing
// the Transaction Engine's dedup/scoring pipeline. tx.ID is assigned
// if empty.
func (m *Manager) InjectTransaction(tx models.Transaction) (*models.Session, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	snapshot, _, _, err := m.AddTransaction(tx)
	return snapshot, err
}

// AddDevice registers or refreshes a DeviceConnection. Returns isNew
// for the caller to gate device:connected broadcasts, which exclude
// the newly connected device itself.
func (m *Manager) AddDevice(dev models.DeviceConnection) (*models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false, ErrNoActiveSession
	}
	existing, found := m.current.ConnectedDevices[dev.ID]
	isNew := !found
	if isNew && m.maxDevices > 0 && len(m.current.ConnectedDevices) >= m.maxDevices {
		return nil, false, ErrMaxDevices
	}
	if found {
		existing.Version = dev.Version
		existing.Name = dev.Name
		existing.IPAddress = dev.IPAddress
		existing.SocketID = dev.SocketID
		existing.LastHeartbeat = time.Now().UTC()
		existing.DisconnectionTime = nil
	} else {
		d := dev
		d.ConnectionTime = time.Now().UTC()
		d.LastHeartbeat = d.ConnectionTime
		m.current.ConnectedDevices[dev.ID] = &d
		existing = &d
	}
	if err := m.persistLocked(); err != nil {
		return nil, false, err
	}
	m.reportDeviceCountsLocked()
	snapshot := m.current.Clone()
	m.bus.Emit(Emitter, EventDeviceUpdated, DeviceUpdatedPayload{Device: existing.Clone(), IsNew: isNew})
	return snapshot, isNew, nil
}

// reportDeviceCountsLocked recomputes connected-device counts by type
// for the Prometheus gauge. Caller must hold m.mu. A socket that has
// disconnected (SocketID == "") but whose record is retained for
// reconnection is not counted as connected.
func (m *Manager) reportDeviceCountsLocked() {
	if m.current == nil {
		return
	}
	counts := map[models.DeviceType]int{}
	for _, dev := range m.current.ConnectedDevices {
		if dev.SocketID != "" {
			counts[dev.Type]++
		}
	}
	for _, t := range []models.DeviceType{models.DeviceGM, models.DevicePlayer, models.DeviceAdmin} {
		metrics.SetDevicesConnected(string(t), counts[t])
	}
}

// UpdateDeviceHeartbeat bumps LastHeartbeat for a connected device.
func (m *Manager) UpdateDeviceHeartbeat(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNoActiveSession
	}
	dev, ok := m.current.ConnectedDevices[deviceID]
	if !ok {
		return nil
	}
	dev.LastHeartbeat = time.Now().UTC()
	return m.persistLocked()
}

// DisconnectDevice clears the device's socket id and records a
// disconnection time. The device record itself is retained so
// reconnection preserves identity.
func (m *Manager) DisconnectDevice(deviceID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	dev, ok := m.current.ConnectedDevices[deviceID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	dev.SocketID = ""
	dev.DisconnectionTime = &now
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.reportDeviceCountsLocked()
	m.bus.Emit(Emitter, EventDeviceDisconnected, DeviceDisconnectedPayload{DeviceID: deviceID, Reason: reason})
	return nil
}

// SystemReset ends the current session (if any) and clears it so the
// next CreateSession call is unblocked. History is preserved on disk;
// scores reset to zero by virtue of the new session starting fresh.
func (m *Manager) SystemReset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Status == models.SessionEnded {
		return nil
	}
	now := time.Now().UTC()
	m.current.Status = models.SessionEnded
	m.current.EndTime = &now
	if err := m.persistLocked(); err != nil {
		return err
	}
	snapshot := m.current.Clone()
	m.bus.Emit(Emitter, EventEnded, snapshot)
	m.bus.Emit(Emitter, EventScoresReset, snapshot.ID)
	return nil
}

// MaxDevices returns the configured per-session device cap.
func (m *Manager) MaxDevices() int {
	return m.maxDevices
}

// EndIfExpired ends the current session if it has been running longer
// than timeout since start and is still active. Returns true if a
// session was ended by this call.
func (m *Manager) EndIfExpired(timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return false, nil
	}
	m.mu.Lock()
	expired := m.current != nil &&
		m.current.Status == models.SessionActive &&
		time.Since(m.current.StartTime) >= timeout
	m.mu.Unlock()
	if !expired {
		return false, nil
	}
	if _, err := m.EndSession("session timeout"); err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListHistory returns every persisted session, newest first, for the
// GET /api/session/history endpoint. It reads from disk rather than
// memory since history spans sessions before the current one.
func (m *Manager) ListHistory() ([]*models.Session, error) {
	keys, err := m.store.List("session:")
	if err != nil {
		return nil, fmt.Errorf("session: list history: %w", err)
	}
	out := make([]*models.Session, 0, len(keys))
	for _, key := range keys {
		if key == "session:current" {
			continue
		}
		var sess models.Session
		ok, err := m.store.Load(key, &sess)
		if err != nil {
			return nil, fmt.Errorf("session: load %s: %w", key, err)
		}
		if !ok {
			continue
		}
		out = append(out, &sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}
